package mindmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectNodes_CentralRoot(t *testing.T) {
	m := &RawMindmap{
		Nodes: []RawNode{{ID: "a", Label: "Root", Type: NodeCentral}},
		Links: []RawLink{},
	}

	nodes := ProjectNodes(m, nil)
	require.Len(t, nodes, 1)

	n := nodes[0]
	assert.Equal(t, "a", n.ID)
	assert.GreaterOrEqual(t, n.Width, 220.0)
	assert.Equal(t, 80.0, n.Height)
	assert.Equal(t, FontWeightBold, n.FontWeight)
	assert.Equal(t, 16.0, n.FontSize)
	assert.Equal(t, Position{}, n.Position)
	assert.Equal(t, "#2563eb", n.Background)
	assert.Equal(t, "white", n.TextColor)
	assert.Equal(t, "#334155", n.BorderColor)
}

func TestProjectNodes_LabelWidth(t *testing.T) {
	label := strings.Repeat("x", 30)
	nodes := ProjectNodes(&RawMindmap{Nodes: []RawNode{{ID: "n", Label: label, Type: NodeTopic}}}, nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, 330.0, nodes[0].Width)

	short := ProjectNodes(&RawMindmap{Nodes: []RawNode{{ID: "n", Label: "short"}}}, nil)
	assert.Equal(t, 180.0, short[0].Width)

	// Runes, not bytes
	accented := ProjectNodes(&RawMindmap{Nodes: []RawNode{{ID: "n", Label: strings.Repeat("é", 16)}}}, nil)
	assert.Equal(t, 190.0, accented[0].Width)
}

func TestProjectNodes_ExplicitWidth(t *testing.T) {
	m := &RawMindmap{Nodes: []RawNode{
		{ID: "t", Label: strings.Repeat("y", 40), Type: NodeTopic, Style: &NodeStyle{Width: 120}},
		{ID: "c", Label: "Core", Type: NodeCentral, Style: &NodeStyle{Width: 150}},
		{ID: "w", Label: "Wide", Type: NodeCentral, Style: &NodeStyle{Width: 400, Height: 60}},
	}}

	nodes := ProjectNodes(m, nil)
	require.Len(t, nodes, 3)
	assert.Equal(t, 120.0, nodes[0].Width, "explicit width wins over label allowance")
	assert.Equal(t, 220.0, nodes[1].Width, "central floor still applies")
	assert.Equal(t, 400.0, nodes[2].Width)
	assert.Equal(t, 60.0, nodes[2].Height)
}

func TestProjectNodes_Colors(t *testing.T) {
	m := &RawMindmap{Nodes: []RawNode{
		{ID: "1", Type: NodeTopic},
		{ID: "2", Type: NodeSubtopic},
		{ID: "3"},
		{ID: "4", Type: NodeType("mystery")},
		{ID: "5", Type: NodeTopic, Style: &NodeStyle{BackgroundColor: "#FFFFFF"}},
		{ID: "6", Type: NodeTopic, Style: &NodeStyle{BackgroundColor: "#ff0000", TextColor: "#000", BorderColor: "#111"}},
	}}

	nodes := ProjectNodes(m, nil)
	require.Len(t, nodes, 6)
	assert.Equal(t, "#0891b2", nodes[0].Background)
	assert.Equal(t, "#334155", nodes[1].Background)
	assert.Equal(t, "#1e293b", nodes[2].Background)
	assert.Equal(t, "#1e293b", nodes[3].Background)
	assert.Equal(t, NodeDefault, nodes[3].Type)
	assert.Equal(t, "#0891b2", nodes[4].Background, "white override falls back to palette")
	assert.Equal(t, "#ff0000", nodes[5].Background)
	assert.Equal(t, "#000", nodes[5].TextColor)
	assert.Equal(t, "#111", nodes[5].BorderColor)
}

func TestProjectNodes_Fonts(t *testing.T) {
	m := &RawMindmap{Nodes: []RawNode{
		{ID: "t", Type: NodeTopic},
		{ID: "s", Type: NodeSubtopic},
		{ID: "o", Type: NodeTopic, Style: &NodeStyle{FontSize: 20, FontWeight: "300"}},
	}}

	nodes := ProjectNodes(m, nil)
	assert.Equal(t, FontWeightSemiBold, nodes[0].FontWeight)
	assert.Equal(t, 14.0, nodes[0].FontSize)
	assert.Equal(t, FontWeightNormal, nodes[1].FontWeight)
	assert.Equal(t, FontWeight("300"), nodes[2].FontWeight)
	assert.Equal(t, 20.0, nodes[2].FontSize)
}

func TestProjectNodes_PositionCopied(t *testing.T) {
	m := &RawMindmap{Nodes: []RawNode{
		{ID: "a", Position: &Position{X: -40.5, Y: 300}},
		{ID: "b"},
		{ID: "c"},
	}}

	nodes := ProjectNodes(m, nil)
	assert.Equal(t, Position{X: -40.5, Y: 300}, nodes[0].Position)
	// Missing positions collapse onto the origin
	assert.Equal(t, nodes[1].Position, nodes[2].Position)
	assert.Equal(t, Position{}, nodes[1].Position)
}

func TestProjectEdges_Hierarchy(t *testing.T) {
	m := &RawMindmap{
		Nodes: []RawNode{{ID: "a"}, {ID: "b"}},
		Links: []RawLink{{Source: "a", Target: "b", Type: LinkHierarchy}},
	}

	edges := ProjectEdges(m, nil)
	require.Len(t, edges, 1)

	e := edges[0]
	assert.Equal(t, "a-b", e.ID)
	assert.Equal(t, 2.0, e.StrokeWidth)
	assert.Equal(t, "#334155", e.Stroke)
	assert.Equal(t, CurveSmoothStep, e.Curve)
	assert.Equal(t, Marker{Kind: MarkerArrowClosed, Width: 15, Height: 15, Color: "#334155"}, e.Marker)
	assert.False(t, e.Animated)
	assert.Empty(t, e.Label)
	assert.Equal(t, "#94a3b8", e.LabelColor)
	assert.Equal(t, 12.0, e.LabelFontSize)
}

func TestProjectEdges_AssociationAndOverrides(t *testing.T) {
	m := &RawMindmap{Links: []RawLink{
		{Source: "a", Target: "c", Type: LinkType("related"), Description: "see also"},
		{Source: "a", Target: "d"},
		{Source: "b", Target: "c", Type: LinkHierarchy, Style: &LinkStyle{StrokeColor: "#f00", StrokeWidth: 4, Animated: true}},
	}}

	edges := ProjectEdges(m, nil)
	require.Len(t, edges, 3)

	assert.Equal(t, 1.0, edges[0].StrokeWidth)
	assert.Equal(t, "#64748b", edges[0].Stroke)
	assert.Equal(t, "see also", edges[0].Label)
	assert.Equal(t, 1.0, edges[1].StrokeWidth)

	assert.Equal(t, 4.0, edges[2].StrokeWidth)
	assert.Equal(t, "#f00", edges[2].Stroke)
	assert.Equal(t, "#f00", edges[2].Marker.Color)
	assert.True(t, edges[2].Animated)
}

func TestProjectEdges_DuplicatePairsKept(t *testing.T) {
	m := &RawMindmap{Links: []RawLink{
		{Source: "a", Target: "b", Type: LinkHierarchy},
		{Source: "a", Target: "b", Type: LinkAssociation},
		{Source: "a", Target: "ghost"},
	}}

	edges := ProjectEdges(m, nil)
	require.Len(t, edges, 3)
	assert.Equal(t, edges[0].ID, edges[1].ID)
	assert.Equal(t, "a-ghost", edges[2].ID)
}

func TestProject_Empty(t *testing.T) {
	for _, m := range []*RawMindmap{nil, {}} {
		g := Project(m, nil)
		assert.Empty(t, g.Nodes)
		assert.Empty(t, g.Edges)
		assert.NotNil(t, g.Nodes)
		assert.NotNil(t, g.Edges)
		assert.True(t, g.Empty())
		assert.Equal(t, DefaultTitle, g.Title)
	}
}

func TestProject_Idempotent(t *testing.T) {
	m := &RawMindmap{
		Title: "Photosynthesis",
		Nodes: []RawNode{
			{ID: "c", Label: "Photosynthesis", Type: NodeCentral, Position: &Position{X: 400, Y: 50}},
			{ID: "l", Label: "Light-dependent reactions", Type: NodeTopic, Position: &Position{X: 200, Y: 200}},
			{ID: "d", Label: "Calvin cycle", Type: NodeTopic, Position: &Position{X: 600, Y: 200}},
		},
		Links: []RawLink{
			{Source: "c", Target: "l", Type: LinkHierarchy},
			{Source: "c", Target: "d", Type: LinkHierarchy},
			{Source: "l", Target: "d", Description: "ATP and NADPH"},
		},
	}

	first := Project(m, nil)
	second := Project(m, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, "Photosynthesis", first.Title)
}

func TestProject_CustomPalette(t *testing.T) {
	m := &RawMindmap{
		Nodes: []RawNode{{ID: "c", Type: NodeCentral}, {ID: "x"}},
		Links: []RawLink{{Source: "c", Target: "x", Type: LinkHierarchy}},
	}

	g := Project(m, &Palette{Central: "#000001", HierarchyStroke: "#000002"})
	assert.Equal(t, "#000001", g.Nodes[0].Background)
	assert.Equal(t, "#1e293b", g.Nodes[1].Background, "unset palette entries keep defaults")
	assert.Equal(t, "#000002", g.Edges[0].Stroke)
	assert.Equal(t, "#94a3b8", g.Edges[0].LabelColor)

	g = Project(m, &Palette{EdgeLabel: "#cbd5e1", EdgeLabelSize: 14})
	assert.Equal(t, "#cbd5e1", g.Edges[0].LabelColor)
	assert.Equal(t, 14.0, g.Edges[0].LabelFontSize)
}
