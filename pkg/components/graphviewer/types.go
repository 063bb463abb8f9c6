package graphviewer

import "github.com/recera/perplexia/pkg/mindmap"

// Surface is anything a view controller can draw a graph onto and fit.
type Surface interface {
	// SetGraph replaces everything drawn with g
	SetGraph(g mindmap.Graph)
	// FitView adjusts the viewport so the graph fills the surface. It returns
	// false when the surface can no longer be fitted (unmounted or closed).
	FitView(opts FitOptions) bool
}

// FitOptions controls a single fit-to-view
type FitOptions struct {
	// Padding is proportional: 0.3 leaves 30% of the bounding box as margin
	Padding float64 `json:"padding"`
	// IncludeHiddenNodes counts hidden nodes towards the bounding box
	IncludeHiddenNodes bool `json:"includeHiddenNodes,omitempty"`
}

// Viewport is the pan/zoom transform: screen = world*Zoom + (X, Y)
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Options configures the viewer behavior and style
type Options struct {
	// Rendering
	BackgroundColor string // default "#0b0e14"
	EdgeColor       string // default "#39424e"
	LabelColor      string // default "#eaeef3"

	// Viewport
	MinZoom float64 // default 0.1
	MaxZoom float64 // default 1.5

	// Terminal cell size in world pixels
	CellWidth  float64 // default 8
	CellHeight float64 // default 16

	// Interaction callbacks (optional)
	OnViewportChange func(v Viewport)
}

func (o *Options) withDefaults() Options {
	d := Options{
		BackgroundColor: "#0b0e14",
		EdgeColor:       "#39424e",
		LabelColor:      "#eaeef3",
		MinZoom:         0.1,
		MaxZoom:         1.5,
		CellWidth:       8,
		CellHeight:      16,
	}
	if o == nil {
		return d
	}
	if o.BackgroundColor != "" {
		d.BackgroundColor = o.BackgroundColor
	}
	if o.EdgeColor != "" {
		d.EdgeColor = o.EdgeColor
	}
	if o.LabelColor != "" {
		d.LabelColor = o.LabelColor
	}
	if o.MinZoom > 0 {
		d.MinZoom = o.MinZoom
	}
	if o.MaxZoom > 0 {
		d.MaxZoom = o.MaxZoom
	}
	if d.MaxZoom < d.MinZoom {
		d.MaxZoom = d.MinZoom
	}
	if o.CellWidth > 0 {
		d.CellWidth = o.CellWidth
	}
	if o.CellHeight > 0 {
		d.CellHeight = o.CellHeight
	}
	d.OnViewportChange = o.OnViewportChange
	return d
}
