package mindmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMindmap = `{
  "title": "Mindmap for cells.pdf",
  "nodes": [
    {"id": "root", "label": "Cell Biology", "type": "Central", "level": 0,
     "position": {"x": 0, "y": 0},
     "style": {"width": "260px", "fontSize": "18px", "backgroundColor": "#ffffff"}},
    {"id": "n1", "label": "Organelles", "type": "topic", "level": 1,
     "position": {"x": -200, "y": 150}, "style": {"height": 90}},
    {"id": "n2", "label": "Membrane", "type": null}
  ],
  "links": [
    {"source": "root", "target": "n1", "type": "hierarchy", "style": {"strokeWidth": "3"}},
    {"source": "n1", "target": "n2", "type": "related_to", "description": "encloses"}
  ]
}`

func TestParse_Sample(t *testing.T) {
	m, err := Parse([]byte(sampleMindmap))
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "Mindmap for cells.pdf", m.Title)
	require.Len(t, m.Nodes, 3)
	require.Len(t, m.Links, 2)

	assert.Equal(t, NodeCentral, m.Nodes[0].Type)
	assert.Equal(t, Length(260), m.Nodes[0].Style.Width)
	assert.Equal(t, Length(18), m.Nodes[0].Style.FontSize)
	assert.Equal(t, Length(90), m.Nodes[1].Style.Height)
	assert.Equal(t, NodeDefault, m.Nodes[2].Type)
	assert.Nil(t, m.Nodes[2].Position)

	assert.Equal(t, LinkHierarchy, m.Links[0].Type)
	assert.Equal(t, Length(3), m.Links[0].Style.StrokeWidth)
	assert.Equal(t, LinkAssociation, m.Links[1].Type)

	g := Project(m, nil)
	assert.Equal(t, 260.0, g.Nodes[0].Width)
	assert.Equal(t, "#2563eb", g.Nodes[0].Background)
	assert.Equal(t, 18.0, g.Nodes[0].FontSize)
	assert.Equal(t, 3.0, g.Edges[0].StrokeWidth)
	assert.Equal(t, "encloses", g.Edges[1].Label)
}

func TestParse_Null(t *testing.T) {
	for _, in := range []string{"", "null", "  null \n"} {
		m, err := Parse([]byte(in))
		assert.NoError(t, err)
		assert.Nil(t, m)
	}
}

func TestParse_MissingCollections(t *testing.T) {
	m, err := Parse([]byte(`{"title": "bare"}`))
	require.NoError(t, err)
	assert.Nil(t, m.Nodes)
	assert.Nil(t, m.Links)

	g := Project(m, nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset")
}

func TestLength_Unparseable(t *testing.T) {
	m, err := Parse([]byte(`{"nodes":[{"id":"a","style":{"width":"auto","height":true,"fontSize":"big"}}]}`))
	require.NoError(t, err)
	require.Len(t, m.Nodes, 1)
	assert.Zero(t, m.Nodes[0].Style.Width)
	assert.Zero(t, m.Nodes[0].Style.Height)
	assert.Zero(t, m.Nodes[0].Style.FontSize)

	n := Project(m, nil).Nodes[0]
	assert.Equal(t, 180.0, n.Width)
	assert.Equal(t, 80.0, n.Height)
}

func TestPosition_Lenient(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Position
	}{
		{"numbers", `{"x": 300, "y": -40.5}`, Position{X: 300, Y: -40.5}},
		{"strings", `{"x": "300", "y": "150px"}`, Position{X: 300, Y: 150}},
		{"placeholders", `{"x": "calculated_x", "y": "calculated_y"}`, Position{}},
		{"missing y", `{"x": 12}`, Position{X: 12}},
		{"not an object", `"center"`, Position{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(`{"nodes":[{"id":"a","position":` + tt.json + `}]}`))
			require.NoError(t, err)
			require.NotNil(t, m.Nodes[0].Position)
			assert.Equal(t, tt.want, *m.Nodes[0].Position)
		})
	}
}

func TestFontWeight_Numeric(t *testing.T) {
	m, err := Parse([]byte(`{"nodes":[
		{"id":"a","style":{"fontWeight":600}},
		{"id":"b","style":{"fontWeight":"bold"}},
		{"id":"c","style":{"fontWeight":false}}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, FontWeight("600"), m.Nodes[0].Style.FontWeight)
	assert.Equal(t, FontWeightBold, m.Nodes[1].Style.FontWeight)
	assert.Equal(t, FontWeight(""), m.Nodes[2].Style.FontWeight)

	g := Project(m, nil)
	assert.Equal(t, FontWeightSemiBold, g.Nodes[0].FontWeight)
	assert.Equal(t, FontWeightNormal, g.Nodes[2].FontWeight)
}

func TestLevel_Lenient(t *testing.T) {
	m, err := Parse([]byte(`{"nodes":[
		{"id":"a","level":1},
		{"id":"b","level":"2"},
		{"id":"c","level":"deep"},
		{"id":"d","level":null}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, Level(1), m.Nodes[0].Level)
	assert.Equal(t, Level(2), m.Nodes[1].Level)
	assert.Equal(t, Level(0), m.Nodes[2].Level)
	assert.Equal(t, Level(0), m.Nodes[3].Level)
	assert.Equal(t, 2, Project(m, nil).Nodes[1].Level)
}

func TestParse_GeneratorOutput(t *testing.T) {
	m, err := Parse([]byte(`{
		"title": "Cell biology",
		"nodes": [
			{"id": "center", "label": "Cells", "type": "central", "level": "0",
			 "position": {"x": "0", "y": "0"}, "style": {"fontWeight": 700, "width": "auto"}},
			{"id": "n1", "label": "Membrane", "type": "topic", "level": "1",
			 "position": {"x": "calculated_x", "y": "calculated_y"}}
		],
		"links": [{"source": "center", "target": "n1", "type": "hierarchy"}]
	}`))
	require.NoError(t, err)

	g := Project(m, nil)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, FontWeight("700"), g.Nodes[0].FontWeight)
	assert.Equal(t, 220.0, g.Nodes[0].Width)
}

func TestDecode(t *testing.T) {
	m, err := Decode(strings.NewReader(sampleMindmap))
	require.NoError(t, err)
	assert.Len(t, m.Nodes, 3)
}

func TestFallback(t *testing.T) {
	m := Fallback("notes.pdf")
	assert.Equal(t, "Mindmap for notes.pdf", m.Title)

	g := Project(m, nil)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "notes.pdf", g.Nodes[0].Label)
	assert.Equal(t, 220.0, g.Nodes[0].Width)
	assert.Empty(t, g.Edges)
}
