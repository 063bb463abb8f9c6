package graphviewer

import (
	"math"
	"strings"

	"github.com/recera/perplexia/pkg/mindmap"
)

// Cell is one character of a rasterised graph
type Cell struct {
	Rune rune
	// Node is the index of the node covering the cell, or -1
	Node int
	// Edge marks cells drawn as part of an edge
	Edge bool
}

// Terminal is a Canvas measured in character cells. Each cell covers
// CellWidth×CellHeight world pixels at zoom 1.
type Terminal struct {
	*Canvas
}

// NewTerminal creates a terminal surface of cols×rows cells
func NewTerminal(cols, rows int, opts *Options) *Terminal {
	o := opts.withDefaults()
	return &Terminal{Canvas: NewCanvas(float64(cols)*o.CellWidth, float64(rows)*o.CellHeight, &o)}
}

// ResizeCells changes the grid size
func (t *Terminal) ResizeCells(cols, rows int) {
	t.Canvas.Resize(float64(cols)*t.opts.CellWidth, float64(rows)*t.opts.CellHeight)
}

// Cells rasterises the graph through the current viewport. Edges are drawn
// first so node boxes cover them.
func (t *Terminal) Cells() [][]Cell {
	cols, rows := t.Grid()
	grid := make([][]Cell, rows)
	for r := range grid {
		grid[r] = make([]Cell, cols)
		for c := range grid[r] {
			grid[r][c] = Cell{Rune: ' ', Node: -1}
		}
	}

	g := t.Graph()
	vp := t.Viewport()
	cw, ch := t.opts.CellWidth, t.opts.CellHeight

	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	centre := func(n mindmap.RenderedNode) (int, int) {
		x := (n.Position.X+n.Width/2)*vp.Zoom + vp.X
		y := (n.Position.Y+n.Height/2)*vp.Zoom + vp.Y
		return int(math.Floor(x / cw)), int(math.Floor(y / ch))
	}

	for _, e := range g.Edges {
		si, ok1 := index[e.Source]
		ti, ok2 := index[e.Target]
		if !ok1 || !ok2 || t.IsHidden(g.Nodes[si]) || t.IsHidden(g.Nodes[ti]) {
			continue
		}
		x0, y0 := centre(g.Nodes[si])
		x1, y1 := centre(g.Nodes[ti])
		line(x0, y0, x1, y1, func(x, y int) {
			if y >= 0 && y < rows && x >= 0 && x < cols {
				grid[y][x] = Cell{Rune: '·', Node: -1, Edge: true}
			}
		})
	}

	for i, n := range g.Nodes {
		if t.IsHidden(n) {
			continue
		}
		x := n.Position.X*vp.Zoom + vp.X
		y := n.Position.Y*vp.Zoom + vp.Y
		c0 := int(math.Floor(x / cw))
		r0 := int(math.Floor(y / ch))
		c1 := int(math.Ceil((x+n.Width*vp.Zoom)/cw)) - 1
		r1 := int(math.Ceil((y+n.Height*vp.Zoom)/ch)) - 1
		if c1 < c0 {
			c1 = c0
		}
		if r1 < r0 {
			r1 = r0
		}
		drawBox(grid, i, n.Label, c0, r0, c1, r1)
	}
	return grid
}

// Grid returns the size in cells
func (t *Terminal) Grid() (cols, rows int) {
	w, h := t.Size()
	return int(math.Round(w / t.opts.CellWidth)), int(math.Round(h / t.opts.CellHeight))
}

// Lines renders the grid as plain text
func (t *Terminal) Lines() []string {
	cells := t.Cells()
	out := make([]string, len(cells))
	var b strings.Builder
	for r, row := range cells {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.Rune)
		}
		out[r] = b.String()
	}
	return out
}

func drawBox(grid [][]Cell, node int, label string, c0, r0, c1, r1 int) {
	set := func(c, r int, ch rune) {
		if r >= 0 && r < len(grid) && c >= 0 && c < len(grid[r]) {
			grid[r][c] = Cell{Rune: ch, Node: node}
		}
	}
	boxed := c1-c0 >= 1 && r1-r0 >= 1
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			ch := ' '
			if boxed {
				switch {
				case r == r0 && c == c0:
					ch = '┌'
				case r == r0 && c == c1:
					ch = '┐'
				case r == r1 && c == c0:
					ch = '└'
				case r == r1 && c == c1:
					ch = '┘'
				case r == r0 || r == r1:
					ch = '─'
				case c == c0 || c == c1:
					ch = '│'
				}
			}
			set(c, r, ch)
		}
	}

	// Label on the middle row, inside the border when there is one
	lc0, lc1 := c0, c1
	if boxed {
		lc0, lc1 = c0+1, c1-1
	}
	room := lc1 - lc0 + 1
	if room <= 0 {
		return
	}
	runes := []rune(label)
	if len(runes) > room {
		if room > 1 {
			runes = append(runes[:room-1:room-1], '…')
		} else {
			runes = runes[:room]
		}
	}
	mid := (r0 + r1) / 2
	start := lc0 + (room-len(runes))/2
	for i, ch := range runes {
		set(start+i, mid, ch)
	}
}

// line walks the cells between two points (Bresenham)
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
