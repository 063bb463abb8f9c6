package mindmap

import (
	"strings"
	"unicode/utf8"
)

// Sizing rules for projected nodes. No text measurement is done, so long labels
// can still overflow; the label allowance is a linear approximation.
const (
	BaseNodeWidth     = 180.0
	LabelAllowance    = 15
	WidthPerExtraRune = 10.0
	CentralMinWidth   = 220.0
	DefaultNodeHeight = 80.0

	CentralFontSize = 16.0
	DefaultFontSize = 14.0

	HierarchyStrokeWidth   = 2.0
	AssociationStrokeWidth = 1.0

	MarkerSize = 15.0

	EdgeLabelFontSize = 12.0
)

// FontWeight is a CSS font weight
type FontWeight string

const (
	FontWeightBold     FontWeight = "bold"
	FontWeightSemiBold FontWeight = "600"
	FontWeightNormal   FontWeight = "normal"
)

// CurveKind is the edge path style
type CurveKind string

// CurveSmoothStep is the orthogonal, rounded-corner path every edge uses
const CurveSmoothStep CurveKind = "smoothstep"

// MarkerKind is the arrowhead style
type MarkerKind string

// MarkerArrowClosed is a filled triangle
const MarkerArrowClosed MarkerKind = "arrowclosed"

// Palette configures the colours used when a node or link has no override
type Palette struct {
	Central  string `json:"central,omitempty" yaml:"central,omitempty" mapstructure:"central"`
	Topic    string `json:"topic,omitempty" yaml:"topic,omitempty" mapstructure:"topic"`
	Subtopic string `json:"subtopic,omitempty" yaml:"subtopic,omitempty" mapstructure:"subtopic"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`

	Text   string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	Border string `json:"border,omitempty" yaml:"border,omitempty" mapstructure:"border"`

	HierarchyStroke   string `json:"hierarchyStroke,omitempty" yaml:"hierarchyStroke,omitempty" mapstructure:"hierarchy_stroke"`
	AssociationStroke string `json:"associationStroke,omitempty" yaml:"associationStroke,omitempty" mapstructure:"association_stroke"`

	EdgeLabel     string  `json:"edgeLabel,omitempty" yaml:"edgeLabel,omitempty" mapstructure:"edge_label"`
	EdgeLabelSize float64 `json:"edgeLabelSize,omitempty" yaml:"edgeLabelSize,omitempty" mapstructure:"edge_label_size"`
}

// DefaultPalette returns the dark theme palette
func DefaultPalette() Palette {
	return Palette{
		Central:           "#2563eb",
		Topic:             "#0891b2",
		Subtopic:          "#334155",
		Default:           "#1e293b",
		Text:              "white",
		Border:            "#334155",
		HierarchyStroke:   "#334155",
		AssociationStroke: "#64748b",
		EdgeLabel:         "#94a3b8",
		EdgeLabelSize:     EdgeLabelFontSize,
	}
}

func (p *Palette) withDefaults() Palette {
	d := DefaultPalette()
	if p == nil {
		return d
	}
	if p.Central != "" {
		d.Central = p.Central
	}
	if p.Topic != "" {
		d.Topic = p.Topic
	}
	if p.Subtopic != "" {
		d.Subtopic = p.Subtopic
	}
	if p.Default != "" {
		d.Default = p.Default
	}
	if p.Text != "" {
		d.Text = p.Text
	}
	if p.Border != "" {
		d.Border = p.Border
	}
	if p.HierarchyStroke != "" {
		d.HierarchyStroke = p.HierarchyStroke
	}
	if p.AssociationStroke != "" {
		d.AssociationStroke = p.AssociationStroke
	}
	if p.EdgeLabel != "" {
		d.EdgeLabel = p.EdgeLabel
	}
	if p.EdgeLabelSize > 0 {
		d.EdgeLabelSize = p.EdgeLabelSize
	}
	return d
}

func (p Palette) background(t NodeType) string {
	switch t {
	case NodeCentral:
		return p.Central
	case NodeTopic:
		return p.Topic
	case NodeSubtopic:
		return p.Subtopic
	default:
		return p.Default
	}
}

// RenderedNode is a fully styled node ready for a render surface
type RenderedNode struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Type     NodeType `json:"type" yaml:"type"`
	Level    int      `json:"level" yaml:"level"`
	Position Position `json:"position" yaml:"position"`

	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`

	Background  string     `json:"background" yaml:"background"`
	TextColor   string     `json:"textColor" yaml:"textColor"`
	BorderColor string     `json:"borderColor" yaml:"borderColor"`
	FontSize    float64    `json:"fontSize" yaml:"fontSize"`
	FontWeight  FontWeight `json:"fontWeight" yaml:"fontWeight"`

	Hidden bool `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Marker decorates the target end of an edge
type Marker struct {
	Kind   MarkerKind `json:"type" yaml:"type"`
	Width  float64    `json:"width" yaml:"width"`
	Height float64    `json:"height" yaml:"height"`
	Color  string     `json:"color" yaml:"color"`
}

// RenderedEdge is a fully styled edge ready for a render surface
type RenderedEdge struct {
	ID            string    `json:"id" yaml:"id"`
	Source        string    `json:"source" yaml:"source"`
	Target        string    `json:"target" yaml:"target"`
	Label         string    `json:"label,omitempty" yaml:"label,omitempty"`
	LabelColor    string    `json:"labelColor" yaml:"labelColor"`
	LabelFontSize float64   `json:"labelFontSize" yaml:"labelFontSize"`
	Stroke        string    `json:"stroke" yaml:"stroke"`
	StrokeWidth   float64   `json:"strokeWidth" yaml:"strokeWidth"`
	Curve         CurveKind `json:"curve" yaml:"curve"`
	Animated      bool      `json:"animated" yaml:"animated"`
	Marker        Marker    `json:"markerEnd" yaml:"markerEnd"`
}

// Graph is one complete projection of a mindmap. It is replaced as a whole,
// never patched.
type Graph struct {
	Title string         `json:"title" yaml:"title"`
	Nodes []RenderedNode `json:"nodes" yaml:"nodes"`
	Edges []RenderedEdge `json:"edges" yaml:"edges"`
}

// Empty reports whether the graph has nothing to draw
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// DefaultTitle is shown when a mindmap carries no title
const DefaultTitle = "Mindmap"

// Project runs both projectors over m
func Project(m *RawMindmap, p *Palette) Graph {
	g := Graph{
		Title: DefaultTitle,
		Nodes: ProjectNodes(m, p),
		Edges: ProjectEdges(m, p),
	}
	if m != nil && m.Title != "" {
		g.Title = m.Title
	}
	return g
}

// ProjectNodes converts every raw node into a rendered node, in input order
func ProjectNodes(m *RawMindmap, p *Palette) []RenderedNode {
	if m == nil || len(m.Nodes) == 0 {
		return []RenderedNode{}
	}
	pal := p.withDefaults()
	out := make([]RenderedNode, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		out = append(out, projectNode(n, pal))
	}
	return out
}

func projectNode(n RawNode, pal Palette) RenderedNode {
	var style NodeStyle
	if n.Style != nil {
		style = *n.Style
	}
	typ := ParseNodeType(string(n.Type))

	width := float64(style.Width)
	if width == 0 {
		width = LabelWidth(n.Label)
	}
	if typ == NodeCentral && width < CentralMinWidth {
		width = CentralMinWidth
	}

	height := float64(style.Height)
	if height == 0 {
		height = DefaultNodeHeight
	}

	background := style.BackgroundColor
	if background == "" || isWhite(background) {
		background = pal.background(typ)
	}

	fontSize := float64(style.FontSize)
	if fontSize == 0 {
		fontSize = DefaultFontSize
		if typ == NodeCentral {
			fontSize = CentralFontSize
		}
	}

	weight := style.FontWeight
	if weight == "" {
		switch typ {
		case NodeCentral:
			weight = FontWeightBold
		case NodeTopic:
			weight = FontWeightSemiBold
		default:
			weight = FontWeightNormal
		}
	}

	var pos Position
	if n.Position != nil {
		pos = *n.Position
	}

	return RenderedNode{
		ID:          n.ID,
		Label:       n.Label,
		Type:        typ,
		Level:       int(n.Level),
		Position:    pos,
		Width:       width,
		Height:      height,
		Background:  background,
		TextColor:   nonEmpty(style.TextColor, pal.Text),
		BorderColor: nonEmpty(style.BorderColor, pal.Border),
		FontSize:    fontSize,
		FontWeight:  weight,
	}
}

// LabelWidth is the default width allowed for a label of the given text
func LabelWidth(label string) float64 {
	extra := utf8.RuneCountInString(label) - LabelAllowance
	if extra < 0 {
		extra = 0
	}
	return BaseNodeWidth + float64(extra)*WidthPerExtraRune
}

// ProjectEdges converts every raw link into a rendered edge, in input order.
// Links sharing a source/target pair produce edges with the same ID.
func ProjectEdges(m *RawMindmap, p *Palette) []RenderedEdge {
	if m == nil || len(m.Links) == 0 {
		return []RenderedEdge{}
	}
	pal := p.withDefaults()
	out := make([]RenderedEdge, 0, len(m.Links))
	for _, l := range m.Links {
		out = append(out, projectEdge(l, pal))
	}
	return out
}

func projectEdge(l RawLink, pal Palette) RenderedEdge {
	var style LinkStyle
	if l.Style != nil {
		style = *l.Style
	}
	hierarchy := ParseLinkType(string(l.Type)) == LinkHierarchy

	stroke := style.StrokeColor
	if stroke == "" {
		stroke = pal.AssociationStroke
		if hierarchy {
			stroke = pal.HierarchyStroke
		}
	}
	width := float64(style.StrokeWidth)
	if width == 0 {
		width = AssociationStrokeWidth
		if hierarchy {
			width = HierarchyStrokeWidth
		}
	}

	return RenderedEdge{
		ID:            EdgeID(l.Source, l.Target),
		Source:        l.Source,
		Target:        l.Target,
		Label:         l.Description,
		LabelColor:    pal.EdgeLabel,
		LabelFontSize: pal.EdgeLabelSize,
		Stroke:        stroke,
		StrokeWidth:   width,
		Curve:         CurveSmoothStep,
		Animated:      style.Animated,
		Marker: Marker{
			Kind:   MarkerArrowClosed,
			Width:  MarkerSize,
			Height: MarkerSize,
			Color:  stroke,
		},
	}
}

// EdgeID is the identity of the edge between source and target
func EdgeID(source, target string) string {
	return source + "-" + target
}

func isWhite(c string) bool {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "#ffffff", "#fff", "white":
		return true
	}
	return false
}

func nonEmpty(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
