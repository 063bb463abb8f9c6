package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

// Style definitions
var (
	primaryColor = lipgloss.Color("#2563eb")
	edgeColor    = lipgloss.Color("#64748b")
	mutedColor   = lipgloss.Color("#94a3b8")
	errorColor   = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	stateStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	edgeStyle = lipgloss.NewStyle().
			Foreground(edgeColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderGraph())
	b.WriteByte('\n')
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	g := m.term.Graph()
	title := g.Title
	if title == "" {
		title = mindmap.DefaultTitle
	}

	state := m.ctrl.State()
	status := state.String()
	if state == view.Projected {
		status = m.spinner.View() + " " + status
	}
	vp := m.term.Viewport()
	info := fmt.Sprintf("%s · %d nodes · %d edges · %.0f%%", status, len(g.Nodes), len(g.Edges), vp.Zoom*100)

	header := titleStyle.Render(title) + "  " + stateStyle.Render(info)
	return lipgloss.NewStyle().MaxWidth(m.width).Render(header)
}

func (m *Model) renderFooter() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}
	if m.focus >= 0 {
		nodes := m.term.Graph().Nodes
		if m.focus < len(nodes) {
			n := nodes[m.focus]
			return helpStyle.Render(fmt.Sprintf("%s (%s)", n.Label, n.Type)) + "  " + m.help.View(m.keys)
		}
	}
	return m.help.View(m.keys)
}

// renderGraph colours the rasterised grid, batching runs of cells that share
// a style so the output stays small.
func (m *Model) renderGraph() string {
	cells := m.term.Cells()
	nodes := m.term.Graph().Nodes
	styles := make([]lipgloss.Style, len(nodes))
	for i, n := range nodes {
		styles[i] = nodeStyle(n, i == m.focus)
	}

	lines := make([]string, len(cells))
	var line, run strings.Builder
	for r, row := range cells {
		line.Reset()
		run.Reset()
		current := cellKey{node: -1}
		flush := func() {
			if run.Len() == 0 {
				return
			}
			line.WriteString(current.render(run.String(), styles))
			run.Reset()
		}
		for _, c := range row {
			k := cellKey{node: c.Node, edge: c.Edge}
			if k != current {
				flush()
				current = k
			}
			run.WriteRune(c.Rune)
		}
		flush()
		lines[r] = line.String()
	}
	return strings.Join(lines, "\n")
}

type cellKey struct {
	node int
	edge bool
}

func (k cellKey) render(s string, styles []lipgloss.Style) string {
	switch {
	case k.node >= 0 && k.node < len(styles):
		return styles[k.node].Render(s)
	case k.edge:
		return edgeStyle.Render(s)
	default:
		return s
	}
}

func nodeStyle(n mindmap.RenderedNode, focused bool) lipgloss.Style {
	s := lipgloss.NewStyle().
		Background(termColor(n.Background, "#1e293b")).
		Foreground(termColor(n.TextColor, "#ffffff"))
	if n.FontWeight == mindmap.FontWeightBold || n.Type == mindmap.NodeCentral {
		s = s.Bold(true)
	}
	if focused {
		s = s.Reverse(true).Bold(true)
	}
	return s
}

// termColor passes hex colours through and replaces CSS names, which
// terminals do not understand, with fallback.
func termColor(c, fallback string) lipgloss.Color {
	if strings.HasPrefix(c, "#") {
		return lipgloss.Color(c)
	}
	return lipgloss.Color(fallback)
}
