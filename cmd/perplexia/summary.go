package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// noSummary is what the back end answers for documents without a summary
const noSummary = "No summary available."

func newSummaryCommand(a *app) *cobra.Command {
	var raw, markRead bool
	var sessionID int64
	var width int

	cmd := &cobra.Command{
		Use:   "summary <pdf-id>",
		Short: "Print a document's summary",
		Long: `Fetches the markdown summary generated for a document and renders it for
the terminal. With --mark-read the document is also marked as read in the
given chat session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pdf id %q", args[0])
			}
			if markRead && sessionID == 0 {
				sessionID = a.cfg.Backend.SessionID
			}
			if markRead && sessionID == 0 {
				return fmt.Errorf("--mark-read needs --session or backend.session_id")
			}
			return a.runSummary(cmd.Context(), cmd.OutOrStdout(), pdfID, summaryOptions{
				raw:       raw,
				width:     width,
				markRead:  markRead,
				sessionID: sessionID,
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown without rendering it")
	cmd.Flags().IntVar(&width, "width", 80, "Word wrap width")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark the document as read")
	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "Chat session id for --mark-read")

	return cmd
}

type summaryOptions struct {
	raw       bool
	width     int
	markRead  bool
	sessionID int64
}

func (a *app) runSummary(ctx context.Context, w io.Writer, pdfID int64, opts summaryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := a.backendClient()
	if err != nil {
		return err
	}

	text, err := client.Summary(ctx, pdfID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		text = noSummary
	}

	if opts.markRead {
		if err := client.TrackRead(ctx, pdfID, opts.sessionID); err != nil {
			return err
		}
		a.logger.Debug("marked read", zap.Int64("pdf_id", pdfID), zap.Int64("session_id", opts.sessionID))
	}

	if opts.raw {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	_, err = fmt.Fprint(w, renderMarkdown(text, opts.width, a.logger))
	return err
}

// renderMarkdown falls back to the plain text when glamour cannot render
func renderMarkdown(text string, width int, logger *zap.Logger) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logger.Debug("markdown renderer unavailable", zap.Error(err))
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		logger.Debug("markdown render failed", zap.Error(err))
		return text + "\n"
	}
	return out
}
