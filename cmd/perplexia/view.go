package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/tui"
	"github.com/recera/perplexia/internal/watch"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

func newViewCommand(a *app) *cobra.Command {
	var watchFile bool

	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Browse a mindmap in the terminal",
		Long: `Opens an interactive terminal viewer. Use the arrow keys to pan, +/- to
zoom, tab to step through nodes and f to fit the whole map. With --watch the
map is reloaded whenever the file is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView(args[0], watchFile)
		},
	}

	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Reload when the file changes")

	return cmd
}

func (a *app) runView(path string, watchFile bool) error {
	// Fail before entering the alternate screen
	if _, err := os.Stat(path); err != nil {
		return err
	}

	c := a.openCache()
	if c != nil {
		defer c.Close()
	}
	ctrl := view.NewController(a.viewOptions(c))
	defer ctrl.Shutdown()

	cfg := tui.Config{
		Controller: ctrl,
		Load: func() (*mindmap.RawMindmap, error) {
			return readMindmap(nil, path)
		},
		Logger: a.logger,
	}

	if watchFile {
		w, err := watch.New(path, &watch.Options{Logger: a.logger})
		if err != nil {
			return err
		}
		defer w.Close()
		cfg.Changes = w.Changes()
		a.logger.Debug("watching for changes", zap.String("path", w.Path()))
	}

	p := tea.NewProgram(tui.New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
