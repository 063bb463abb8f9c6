// Package tui is the interactive terminal viewer behind `perplexia view`.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/recera/perplexia/pkg/components/graphviewer"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

const (
	panStep      = 4 // cells per key press
	zoomStep     = 1.2
	focusZoom    = 1.0
	refitPadding = 0.3
	chromeRows   = 2 // header and footer
)

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Fit     key.Binding
	Reset   key.Binding
	Next    key.Binding
	Prev    key.Binding
	Reload  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "pan up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "pan down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "zoom out"),
	),
	Fit: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fit"),
	),
	Reset: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "reset zoom"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "n"),
		key.WithHelp("tab", "next node"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "p"),
		key.WithHelp("shift+tab", "previous node"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Fit, k.Next, k.ZoomIn, k.ZoomOut, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut, k.Fit, k.Reset},
		{k.Next, k.Prev, k.Reload, k.Help, k.Quit},
	}
}

// LoadFunc produces the mindmap to show
type LoadFunc func() (*mindmap.RawMindmap, error)

// Config wires a Model to its view controller and data
type Config struct {
	Controller *view.Controller
	// Load is called at start, on the reload key and on every Changes signal
	Load LoadFunc
	// Changes, when set, triggers a reload per value received
	Changes <-chan struct{}
	Logger  *zap.Logger
}

type (
	redrawMsg      struct{}
	fileChangedMsg struct{}
	loadedMsg      struct{ err error }
)

// Model is the viewer state
type Model struct {
	ctrl    *view.Controller
	term    *graphviewer.Terminal
	load    LoadFunc
	changes <-chan struct{}
	logger  *zap.Logger

	redraw      chan struct{}
	unsubscribe func()

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int

	focus    int // index into the graph's nodes, -1 for none
	showHelp bool
	quitting bool
	loads    int
	err      error
}

// New attaches a terminal surface to the controller. The caller still owns
// the controller and should shut it down once the program exits.
func New(cfg Config) *Model {
	m := &Model{
		ctrl:    cfg.Controller,
		load:    cfg.Load,
		changes: cfg.Changes,
		logger:  cfg.Logger,
		redraw:  make(chan struct{}, 1),
		keys:    DefaultKeyMap,
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		width:   80,
		height:  24,
		focus:   -1,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.term = graphviewer.NewTerminal(m.width, m.height-chromeRows, &graphviewer.Options{
		OnViewportChange: func(graphviewer.Viewport) { m.requestRedraw() },
	})
	m.unsubscribe = m.ctrl.Subscribe(func(mindmap.Graph) { m.requestRedraw() })
	if err := m.ctrl.AttachSurface(m.term); err != nil {
		m.err = err
	}
	return m
}

// Terminal exposes the surface the model draws on
func (m *Model) Terminal() *graphviewer.Terminal {
	return m.term
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForRedraw(), m.spinner.Tick}
	if m.load != nil {
		cmds = append(cmds, m.loadCmd())
	}
	if m.changes != nil {
		cmds = append(cmds, m.waitForChange())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.term.ResizeCells(msg.Width, max(msg.Height-chromeRows, 1))
		if m.ctrl.State() == view.Settled {
			m.term.FitGraph(refitPadding)
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case redrawMsg:
		if m.focus >= len(m.term.Graph().Nodes) {
			m.focus = -1
		}
		return m, m.waitForRedraw()

	case fileChangedMsg:
		return m, tea.Batch(m.loadCmd(), m.waitForChange())

	case loadedMsg:
		m.loads++
		m.err = msg.err
		if msg.err != nil {
			m.logger.Warn("load failed", zap.Error(msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	cw, ch := m.cellSize()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.teardown()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Up):
		m.term.Pan(0, panStep*ch)
	case key.Matches(msg, m.keys.Down):
		m.term.Pan(0, -panStep*ch)
	case key.Matches(msg, m.keys.Left):
		m.term.Pan(panStep*cw, 0)
	case key.Matches(msg, m.keys.Right):
		m.term.Pan(-panStep*cw, 0)
	case key.Matches(msg, m.keys.ZoomIn):
		m.term.ZoomBy(zoomStep)
	case key.Matches(msg, m.keys.ZoomOut):
		m.term.ZoomBy(1 / zoomStep)
	case key.Matches(msg, m.keys.Fit):
		m.focus = -1
		m.term.FitGraph(refitPadding)
	case key.Matches(msg, m.keys.Reset):
		m.term.Reset()
	case key.Matches(msg, m.keys.Next):
		m.cycleFocus(1)
	case key.Matches(msg, m.keys.Prev):
		m.cycleFocus(-1)
	case key.Matches(msg, m.keys.Reload):
		if m.load != nil {
			return m.loadCmd()
		}
	}
	return nil
}

// cycleFocus moves focus to the next visible node in direction dir
func (m *Model) cycleFocus(dir int) {
	nodes := m.term.Graph().Nodes
	if len(nodes) == 0 {
		m.focus = -1
		return
	}
	i := m.focus
	for range nodes {
		i = ((i+dir)%len(nodes) + len(nodes)) % len(nodes)
		if !m.term.IsHidden(nodes[i]) {
			m.focus = i
			m.term.FocusNode(nodes[i].ID, focusZoom)
			return
		}
	}
}

// cellSize is the world size of one cell at zoom 1
func (m *Model) cellSize() (float64, float64) {
	w, h := m.term.Size()
	cols, rows := m.term.Grid()
	if cols == 0 || rows == 0 {
		return 8, 16
	}
	return w / float64(cols), h / float64(rows)
}

func (m *Model) requestRedraw() {
	select {
	case m.redraw <- struct{}{}:
	default:
	}
}

func (m *Model) waitForRedraw() tea.Cmd {
	return func() tea.Msg {
		<-m.redraw
		return redrawMsg{}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

func (m *Model) loadCmd() tea.Cmd {
	load, ctrl := m.load, m.ctrl
	return func() tea.Msg {
		raw, err := load()
		if err == nil {
			err = ctrl.Open(raw)
		}
		return loadedMsg{err: err}
	}
}

func (m *Model) teardown() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.term.Unmount()
	m.ctrl.DetachSurface()
}
