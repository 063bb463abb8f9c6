package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

func testMindmap() *mindmap.RawMindmap {
	return &mindmap.RawMindmap{
		Title: "Cells",
		Nodes: []mindmap.RawNode{
			{ID: "root", Label: "Cells", Type: mindmap.NodeCentral, Position: &mindmap.Position{X: 0, Y: 0}},
			{ID: "n1", Label: "Nucleus", Type: mindmap.NodeTopic, Position: &mindmap.Position{X: 300, Y: 0}},
			{ID: "n2", Label: "Membrane", Type: mindmap.NodeTopic, Position: &mindmap.Position{X: 300, Y: 200}},
		},
		Links: []mindmap.RawLink{
			{Source: "root", Target: "n1", Type: mindmap.LinkHierarchy},
			{Source: "root", Target: "n2", Type: mindmap.LinkHierarchy},
		},
	}
}

func newTestModel(t *testing.T, load LoadFunc) (*Model, *view.Controller) {
	t.Helper()
	ctrl := view.NewController(&view.Options{
		FitDelay:     5 * time.Millisecond,
		InitFitDelay: 5 * time.Millisecond,
	})
	t.Cleanup(ctrl.Shutdown)
	m := New(Config{Controller: ctrl, Load: load})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, ctrl
}

func settle(t *testing.T, ctrl *view.Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.State() == view.Settled
	}, 2*time.Second, 5*time.Millisecond)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadAndRender(t *testing.T) {
	m, ctrl := newTestModel(t, func() (*mindmap.RawMindmap, error) {
		return testMindmap(), nil
	})

	msg := m.loadCmd()()
	_, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.loads)
	assert.NoError(t, m.err)

	settle(t, ctrl)

	cols, rows := m.Terminal().Grid()
	assert.Equal(t, 100, cols)
	assert.Equal(t, 28, rows)

	out := m.View()
	assert.Contains(t, out, "Cells")
	assert.Contains(t, out, "Nucleus")
	assert.Contains(t, out, "3 nodes")
	assert.Contains(t, out, "settled")
}

func TestModel_LoadError(t *testing.T) {
	m, ctrl := newTestModel(t, func() (*mindmap.RawMindmap, error) {
		return nil, errors.New("backend down")
	})

	m.Update(m.loadCmd()())
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "backend down")
	assert.Equal(t, view.Empty, ctrl.State())
}

func TestModel_ZoomAndPan(t *testing.T) {
	m, ctrl := newTestModel(t, nil)
	require.NoError(t, ctrl.Open(testMindmap()))
	settle(t, ctrl)

	before := m.Terminal().Viewport()

	m.Update(keyRunes("-"))
	zoomed := m.Terminal().Viewport()
	assert.Less(t, zoomed.Zoom, before.Zoom)

	m.Update(keyRunes("l"))
	panned := m.Terminal().Viewport()
	assert.Less(t, panned.X, zoomed.X)
	assert.Equal(t, zoomed.Y, panned.Y)

	m.Update(keyRunes("0"))
	assert.Equal(t, 1.0, m.Terminal().Viewport().Zoom)

	fits := m.Terminal().Fits()
	m.Update(keyRunes("f"))
	assert.Equal(t, fits+1, m.Terminal().Fits())
}

func TestModel_CycleFocus(t *testing.T) {
	m, ctrl := newTestModel(t, nil)
	require.NoError(t, ctrl.Open(testMindmap()))
	settle(t, ctrl)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.focus)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.focus)
	assert.Contains(t, m.View(), "Nucleus (topic)")

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 2, m.focus)

	m.Terminal().SetHidden("n2")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.focus)

	m.Update(keyRunes("f"))
	assert.Equal(t, -1, m.focus)
}

func TestModel_FocusWithoutGraph(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, -1, m.focus)
}

func TestModel_Help(t *testing.T) {
	m, _ := newTestModel(t, nil)
	assert.NotContains(t, m.View(), "pan up")

	m.Update(keyRunes("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "pan up")
}

func TestModel_Quit(t *testing.T) {
	m, ctrl := newTestModel(t, nil)
	require.NoError(t, ctrl.Open(testMindmap()))
	settle(t, ctrl)

	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
	assert.False(t, m.Terminal().Mounted())

	// the controller no longer draws on the detached terminal
	require.NoError(t, ctrl.Open(&mindmap.RawMindmap{Title: "Other"}))
	require.Eventually(t, func() bool { return ctrl.Graph().Title == "Other" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Cells", m.Terminal().Graph().Title)
}

func TestModel_FileChangeReloads(t *testing.T) {
	changes := make(chan struct{}, 1)
	calls := 0
	ctrl := view.NewController(nil)
	t.Cleanup(ctrl.Shutdown)
	m := New(Config{
		Controller: ctrl,
		Changes:    changes,
		Load: func() (*mindmap.RawMindmap, error) {
			calls++
			return testMindmap(), nil
		},
	})

	changes <- struct{}{}
	msg := m.waitForChange()()
	assert.Equal(t, fileChangedMsg{}, msg)

	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)

	close(changes)
	assert.Nil(t, m.waitForChange()())

	m.Update(m.loadCmd()())
	assert.Equal(t, 1, calls)
}
