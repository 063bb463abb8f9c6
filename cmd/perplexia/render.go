package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recera/perplexia/pkg/components/graphviewer"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

// renderResult is what `perplexia render` prints
type renderResult struct {
	State    string               `json:"state" yaml:"state"`
	Viewport graphviewer.Viewport `json:"viewport" yaml:"viewport"`
	Graph    mindmap.Graph        `json:"graph" yaml:"graph"`
}

func newRenderCommand(a *app) *cobra.Command {
	var format string
	var width, height float64
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "Project a mindmap and print the resulting graph",
		Long: `Decodes a mindmap document, projects it into styled nodes and edges,
fits it to a virtual canvas of the given size and prints the graph together
with the viewport the fit settled on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			m, err := readMindmap(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res, err := a.render(m, width, height, timeout)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, res)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	cmd.Flags().Float64Var(&width, "width", 1280, "Canvas width in pixels")
	cmd.Flags().Float64Var(&height, "height", 800, "Canvas height in pixels")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the fit")

	return cmd
}

// readMindmap decodes path, or standard input when path is "-"
func readMindmap(stdin io.Reader, path string) (*mindmap.RawMindmap, error) {
	if path == "-" {
		return mindmap.Decode(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := mindmap.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// render runs a controller against a headless canvas until the deferred fit
// lands, so the printed viewport is the one a browser would show
func (a *app) render(m *mindmap.RawMindmap, width, height float64, timeout time.Duration) (*renderResult, error) {
	c := a.openCache()
	if c != nil {
		defer c.Close()
	}

	canvas := graphviewer.NewCanvas(width, height, nil)

	fitted := make(chan struct{}, 1)
	opts := a.viewOptions(c)
	opts.OnFit = func(float64) {
		select {
		case fitted <- struct{}{}:
		default:
		}
	}
	ctrl := view.NewController(opts)
	defer ctrl.Shutdown()

	if err := ctrl.AttachSurface(canvas); err != nil {
		return nil, err
	}
	if err := ctrl.Open(m); err != nil {
		return nil, err
	}

	// A fit is accepted even when there is nothing to frame, so empty
	// mindmaps and zero-sized canvases settle with the default viewport
	if ctrl.State() != view.Empty {
		select {
		case <-fitted:
		case <-time.After(timeout):
			return nil, fmt.Errorf("no fit within %s", timeout)
		}
	}

	return &renderResult{
		State:    ctrl.State().String(),
		Viewport: canvas.Viewport(),
		Graph:    ctrl.Graph(),
	}, nil
}

func writeResult(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
