package graphviewer

import (
	"math"
	"sync"

	"github.com/recera/perplexia/pkg/mindmap"
)

// Canvas is a headless surface of a fixed pixel size. It keeps the graph and
// the viewport that would be used to draw it.
type Canvas struct {
	mu       sync.RWMutex
	opts     Options
	width    float64
	height   float64
	graph    mindmap.Graph
	hidden   map[string]bool
	viewport Viewport
	mounted  bool
	fits     int
}

// NewCanvas creates a mounted canvas of the given size
func NewCanvas(width, height float64, opts *Options) *Canvas {
	return &Canvas{
		opts:     opts.withDefaults(),
		width:    width,
		height:   height,
		hidden:   make(map[string]bool),
		viewport: Viewport{Zoom: 1},
		mounted:  true,
	}
}

// SetGraph replaces the drawn graph. The viewport is left alone.
func (c *Canvas) SetGraph(g mindmap.Graph) {
	c.mu.Lock()
	c.graph = g
	c.mu.Unlock()
}

// Graph returns the graph currently drawn
func (c *Canvas) Graph() mindmap.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// Resize changes the surface size in pixels
func (c *Canvas) Resize(width, height float64) {
	c.mu.Lock()
	c.width, c.height = width, height
	c.mu.Unlock()
}

// Size returns the surface size in pixels
func (c *Canvas) Size() (width, height float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// SetHidden marks node ids as hidden; hidden nodes are skipped by fits
// unless IncludeHiddenNodes is set. Calling it with no ids clears the set.
func (c *Canvas) SetHidden(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = make(map[string]bool, len(ids))
	for _, id := range ids {
		c.hidden[id] = true
	}
}

// IsHidden reports whether n is hidden either by the graph or by SetHidden
func (c *Canvas) IsHidden(n mindmap.RenderedNode) bool {
	if n.Hidden {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hidden[n.ID]
}

// FitView fits the visible nodes into the surface. With nothing to fit the
// viewport is unchanged; the call still succeeds while mounted.
func (c *Canvas) FitView(fo FitOptions) bool {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return false
	}
	c.fits++
	vp, ok := FitViewport(c.visibleNodes(fo.IncludeHiddenNodes), c.width, c.height, c.opts.MinZoom, c.opts.MaxZoom, fo.Padding)
	if ok {
		c.viewport = vp
	}
	cb := c.opts.OnViewportChange
	c.mu.Unlock()

	if ok && cb != nil {
		cb(vp)
	}
	return true
}

// FitGraph fits all visible nodes with the given proportional padding
func (c *Canvas) FitGraph(padding float64) {
	c.FitView(FitOptions{Padding: padding})
}

// Reset resets zoom/pan to defaults
func (c *Canvas) Reset() {
	c.setViewport(Viewport{Zoom: 1})
}

// FocusNode centers the viewport on a node at the given zoom
func (c *Canvas) FocusNode(id string, zoom float64) {
	c.mu.RLock()
	var target *mindmap.RenderedNode
	for i := range c.graph.Nodes {
		if c.graph.Nodes[i].ID == id {
			target = &c.graph.Nodes[i]
			break
		}
	}
	w, h := c.width, c.height
	minZ, maxZ := c.opts.MinZoom, c.opts.MaxZoom
	mounted := c.mounted
	c.mu.RUnlock()

	if target == nil || !mounted {
		return
	}
	zoom = clamp(zoom, minZ, maxZ)
	cx := target.Position.X + target.Width/2
	cy := target.Position.Y + target.Height/2
	c.setViewport(Viewport{
		X:    w/2 - cx*zoom,
		Y:    h/2 - cy*zoom,
		Zoom: zoom,
	})
}

// Pan moves the viewport by dx, dy screen pixels
func (c *Canvas) Pan(dx, dy float64) {
	vp := c.Viewport()
	vp.X += dx
	vp.Y += dy
	c.setViewport(vp)
}

// ZoomBy scales the zoom around the centre of the surface, within the
// configured limits
func (c *Canvas) ZoomBy(factor float64) {
	c.mu.RLock()
	vp := c.viewport
	w, h := c.width, c.height
	minZ, maxZ := c.opts.MinZoom, c.opts.MaxZoom
	c.mu.RUnlock()

	if factor <= 0 || vp.Zoom <= 0 {
		return
	}
	zoom := clamp(vp.Zoom*factor, minZ, maxZ)
	// Keep the world point under the centre fixed
	cx, cy := (w/2-vp.X)/vp.Zoom, (h/2-vp.Y)/vp.Zoom
	c.setViewport(Viewport{
		X:    w/2 - cx*zoom,
		Y:    h/2 - cy*zoom,
		Zoom: zoom,
	})
}

// Viewport returns the current pan/zoom
func (c *Canvas) Viewport() Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport
}

// Fits counts accepted FitView calls
func (c *Canvas) Fits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fits
}

// Unmount detaches the canvas; later fits are rejected
func (c *Canvas) Unmount() {
	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

// Mounted reports whether the canvas still accepts fits
func (c *Canvas) Mounted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mounted
}

// WorldToScreen maps a world point through the current viewport
func (c *Canvas) WorldToScreen(x, y float64) (sx, sy float64) {
	vp := c.Viewport()
	return x*vp.Zoom + vp.X, y*vp.Zoom + vp.Y
}

func (c *Canvas) setViewport(vp Viewport) {
	c.mu.Lock()
	c.viewport = vp
	cb := c.opts.OnViewportChange
	c.mu.Unlock()
	if cb != nil {
		cb(vp)
	}
}

// visibleNodes must be called with c.mu held
func (c *Canvas) visibleNodes(includeHidden bool) []mindmap.RenderedNode {
	if includeHidden {
		return c.graph.Nodes
	}
	out := make([]mindmap.RenderedNode, 0, len(c.graph.Nodes))
	for _, n := range c.graph.Nodes {
		if n.Hidden || c.hidden[n.ID] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Bounds is an axis-aligned rectangle in world coordinates
type Bounds struct {
	X, Y, Width, Height float64
}

// NodeBounds returns the box enclosing every node, reporting false for none
func NodeBounds(nodes []mindmap.RenderedNode) (Bounds, bool) {
	if len(nodes) == 0 {
		return Bounds{}, false
	}
	minx, miny := math.Inf(1), math.Inf(1)
	maxx, maxy := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minx = math.Min(minx, n.Position.X)
		miny = math.Min(miny, n.Position.Y)
		maxx = math.Max(maxx, n.Position.X+n.Width)
		maxy = math.Max(maxy, n.Position.Y+n.Height)
	}
	return Bounds{X: minx, Y: miny, Width: maxx - minx, Height: maxy - miny}, true
}

// FitViewport computes the viewport that centres nodes in a width×height
// surface with proportional padding, zoom clamped to [minZoom, maxZoom].
func FitViewport(nodes []mindmap.RenderedNode, width, height, minZoom, maxZoom, padding float64) (Viewport, bool) {
	b, ok := NodeBounds(nodes)
	if !ok || width <= 0 || height <= 0 {
		return Viewport{}, false
	}
	bw, bh := b.Width, b.Height
	if bw <= 0 {
		bw = 1
	}
	if bh <= 0 {
		bh = 1
	}
	zx := width / (bw * (1 + padding))
	zy := height / (bh * (1 + padding))
	zoom := clamp(math.Min(zx, zy), minZoom, maxZoom)

	cx := b.X + b.Width/2
	cy := b.Y + b.Height/2
	return Viewport{
		X:    width/2 - cx*zoom,
		Y:    height/2 - cy*zoom,
		Zoom: zoom,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
