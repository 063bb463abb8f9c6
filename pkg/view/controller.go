// Package view owns a projected mindmap for the lifetime of one viewer and
// keeps its surface fitted to the content.
package view

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/recera/perplexia/pkg/components/graphviewer"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/reactive"
	"github.com/recera/perplexia/pkg/scheduler"
)

// ErrShutdown is returned by calls made after Shutdown
var ErrShutdown = errors.New("view: controller shut down")

// State is the controller lifecycle position
type State int32

const (
	// Empty holds no mindmap
	Empty State = iota
	// Projected holds a graph whose surface has not been fitted yet
	Projected
	// Settled holds a graph and the surface was fitted to it
	Settled
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Projected:
		return "projected"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// Options configures a Controller. Zero fields take defaults.
type Options struct {
	// FitDelay defers the fit after a new mindmap is projected
	FitDelay time.Duration
	// InitFitDelay defers the fit after a surface is attached
	InitFitDelay time.Duration
	// FitPadding is the proportional padding of post-projection fits
	FitPadding float64
	// InitFitPadding is the proportional padding of post-attach fits
	InitFitPadding float64

	Palette *mindmap.Palette
	// Project replaces mindmap.Project, e.g. with a caching projector
	Project ProjectFunc
	// OnFit is called on the controller loop after every fit the surface
	// accepted, once the state is Settled. It must not call back into the
	// controller.
	OnFit  func(padding float64)
	Logger *zap.Logger
}

// ProjectFunc turns a raw mindmap into a graph using palette
type ProjectFunc func(m *mindmap.RawMindmap, palette *mindmap.Palette) mindmap.Graph

const (
	DefaultFitDelay       = 100 * time.Millisecond
	DefaultInitFitDelay   = 200 * time.Millisecond
	DefaultFitPadding     = 0.3
	DefaultInitFitPadding = 0.4
)

func (o *Options) withDefaults() Options {
	d := Options{
		FitDelay:       DefaultFitDelay,
		InitFitDelay:   DefaultInitFitDelay,
		FitPadding:     DefaultFitPadding,
		InitFitPadding: DefaultInitFitPadding,
		Project:        mindmap.Project,
	}
	if o == nil {
		d.Logger = zap.NewNop()
		return d
	}
	if o.FitDelay > 0 {
		d.FitDelay = o.FitDelay
	}
	if o.InitFitDelay > 0 {
		d.InitFitDelay = o.InitFitDelay
	}
	if o.FitPadding > 0 {
		d.FitPadding = o.FitPadding
	}
	if o.InitFitPadding > 0 {
		d.InitFitPadding = o.InitFitPadding
	}
	d.Palette = o.Palette
	if o.Project != nil {
		d.Project = o.Project
	}
	d.OnFit = o.OnFit
	d.Logger = o.Logger
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Controller holds the projected graph of one viewer, replaces it whole when a
// new mindmap arrives, and schedules deferred fits of the attached surface.
//
// Every transition runs on the controller's own loop, so public methods may
// be called from any goroutine. Graph subscribers are notified on that loop
// and must not call back into Open, Close, AttachSurface or DetachSurface.
type Controller struct {
	opts  Options
	log   *zap.Logger
	loop  *scheduler.Loop
	graph *reactive.State[mindmap.Graph]
	state atomic.Int32

	// loop-owned
	surface    graphviewer.Surface
	generation uint64
	pending    []*scheduler.Task
	fits       int
}

// NewController creates a running controller in the Empty state
func NewController(opts *Options) *Controller {
	o := opts.withDefaults()
	c := &Controller{
		opts:  o,
		log:   o.Logger.Named("view"),
		loop:  scheduler.NewLoop(64),
		graph: reactive.NewState(emptyGraph()),
	}
	c.loop.SetErrorHandler(func(err interface{}, stack []byte) {
		c.log.Error("panic on view loop", zap.Any("panic", err), zap.ByteString("stack", stack))
	})
	c.loop.Start()
	return c
}

// Open replaces the current graph with the projection of m and schedules a
// fit. A nil mindmap empties the controller. Every call re-projects, even when
// m is the mindmap already shown.
func (c *Controller) Open(m *mindmap.RawMindmap) error {
	if !c.loop.Do(func() { c.open(m) }) {
		return ErrShutdown
	}
	return nil
}

// Close discards the graph and cancels pending fits. The controller can be
// opened again afterwards.
func (c *Controller) Close() error {
	if !c.loop.Do(c.reset) {
		return ErrShutdown
	}
	return nil
}

// AttachSurface binds s as the render surface. If a graph is already held it
// is pushed to s and an initial fit is scheduled.
func (c *Controller) AttachSurface(s graphviewer.Surface) error {
	if !c.loop.Do(func() { c.attach(s) }) {
		return ErrShutdown
	}
	return nil
}

// DetachSurface unbinds the surface; pending fits become no-ops
func (c *Controller) DetachSurface() error {
	if !c.loop.Do(func() {
		c.surface = nil
		c.log.Debug("surface detached")
	}) {
		return ErrShutdown
	}
	return nil
}

// Shutdown closes the controller and stops its loop. Later calls return ErrShutdown.
func (c *Controller) Shutdown() {
	c.loop.Do(func() {
		c.reset()
		c.surface = nil
	})
	c.loop.Stop()
}

// Graph returns the current graph
func (c *Controller) Graph() mindmap.Graph {
	return c.graph.Get()
}

// Version counts graph replacements
func (c *Controller) Version() uint64 {
	return c.graph.Version()
}

// State returns the lifecycle state. It is read independently of Graph; a
// non-Empty state is only published after its graph.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Subscribe registers fn for every graph replacement, including the empty
// graph set by Close. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(mindmap.Graph)) func() {
	return c.graph.Subscribe(fn)
}

// Fits counts fits issued to a surface
func (c *Controller) Fits() int {
	var n int
	if !c.loop.Do(func() { n = c.fits }) {
		return 0
	}
	return n
}

// PendingFits returns how many deferred fits are still waiting
func (c *Controller) PendingFits() int {
	return c.loop.Pending()
}

func (c *Controller) open(m *mindmap.RawMindmap) {
	c.cancelPending()
	c.generation++

	if m == nil {
		c.replace(emptyGraph(), Empty)
		c.log.Debug("opened empty mindmap", zap.Uint64("generation", c.generation))
		return
	}

	g := c.opts.Project(m, c.opts.Palette)
	c.replace(g, Projected)
	c.log.Debug("projected mindmap",
		zap.String("title", g.Title),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Uint64("generation", c.generation))

	c.schedule(c.opts.FitDelay, c.opts.FitPadding, "projected")
}

func (c *Controller) attach(s graphviewer.Surface) {
	c.surface = s
	if s == nil {
		return
	}
	g := c.graph.Get()
	s.SetGraph(g)
	c.log.Debug("surface attached", zap.Int("nodes", len(g.Nodes)))
	if c.State() != Empty {
		c.schedule(c.opts.InitFitDelay, c.opts.InitFitPadding, "init")
	}
}

func (c *Controller) reset() {
	c.cancelPending()
	c.generation++
	c.replace(emptyGraph(), Empty)
	c.log.Debug("closed", zap.Uint64("generation", c.generation))
}

// replace publishes g before st, so a reader that sees the new state also
// sees its graph. Subscribers run inside graph.Set and still see the old state.
func (c *Controller) replace(g mindmap.Graph, st State) {
	c.graph.Set(g)
	c.state.Store(int32(st))
	if c.surface != nil {
		c.surface.SetGraph(g)
	}
}

func (c *Controller) schedule(delay time.Duration, padding float64, reason string) {
	gen := c.generation
	var task *scheduler.Task
	task = c.loop.After(delay, func() {
		c.forget(task)
		c.fire(gen, padding, reason)
	})
	c.pending = append(c.pending, task)
}

// fire runs on the loop. Fits scheduled before the latest Open or Close, or
// with no surface attached, are dropped.
func (c *Controller) fire(gen uint64, padding float64, reason string) {
	fields := []zap.Field{zap.String("reason", reason), zap.Uint64("generation", gen)}
	switch {
	case gen != c.generation:
		c.log.Debug("stale fit dropped", append(fields, zap.Uint64("current", c.generation))...)
		return
	case c.State() == Empty:
		c.log.Debug("fit dropped: no graph", fields...)
		return
	case c.surface == nil:
		c.log.Debug("fit dropped: no surface", fields...)
		return
	}

	if !c.surface.FitView(graphviewer.FitOptions{Padding: padding}) {
		c.log.Debug("fit rejected by surface", fields...)
		return
	}
	c.fits++
	c.state.Store(int32(Settled))
	c.log.Debug("fit issued", append(fields, zap.Float64("padding", padding))...)
	if c.opts.OnFit != nil {
		c.opts.OnFit(padding)
	}
}

func (c *Controller) cancelPending() {
	for _, t := range c.pending {
		t.Cancel()
	}
	c.pending = c.pending[:0]
}

func (c *Controller) forget(task *scheduler.Task) {
	for i, t := range c.pending {
		if t == task {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func emptyGraph() mindmap.Graph {
	return mindmap.Graph{Nodes: []mindmap.RenderedNode{}, Edges: []mindmap.RenderedEdge{}}
}
