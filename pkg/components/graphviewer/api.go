package graphviewer

// API provides imperative control over a mounted viewer. Users can keep a
// reference to a Canvas or Terminal and drive it directly.
type API interface {
	FitGraph(padding float64)
	Reset()
	FocusNode(id string, zoom float64)
	Pan(dx, dy float64)
	ZoomBy(factor float64)
}

var (
	_ API     = (*Canvas)(nil)
	_ Surface = (*Canvas)(nil)
	_ API     = (*Terminal)(nil)
	_ Surface = (*Terminal)(nil)
)
