package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/recera/perplexia/internal/backend"
	"github.com/recera/perplexia/internal/progress"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563eb"))
	completeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981"))
	readStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b"))
	unreadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
)

// sessionReport is the machine-readable form of `perplexia progress`
type sessionReport struct {
	SessionID int64            `json:"session_id" yaml:"session_id"`
	Summary   progress.Summary `json:"summary" yaml:"summary"`
	Documents []progressRow    `json:"documents" yaml:"documents"`
}

type progressRow struct {
	ID            int64           `json:"id" yaml:"id"`
	Filename      string          `json:"filename" yaml:"filename"`
	Status        progress.Status `json:"status" yaml:"status"`
	HasQuiz       bool            `json:"has_quiz" yaml:"has_quiz"`
	QuizCompleted bool            `json:"quiz_completed" yaml:"quiz_completed"`
	QuizScore     *float64        `json:"quiz_score,omitempty" yaml:"quiz_score,omitempty"`
	Progress      float64         `json:"progress_percentage" yaml:"progress_percentage"`
}

func newSessionReport(sessionID int64, docs []backend.DocumentProgress) sessionReport {
	r := sessionReport{
		SessionID: sessionID,
		Summary:   progress.Summarize(docs),
		Documents: make([]progressRow, 0, len(docs)),
	}
	for _, d := range docs {
		r.Documents = append(r.Documents, progressRow{
			ID:            d.ID,
			Filename:      d.Filename,
			Status:        progress.StatusOf(d),
			HasQuiz:       d.HasQuiz,
			QuizCompleted: d.QuizCompleted,
			QuizScore:     d.QuizScore,
			Progress:      d.ProgressPercentage,
		})
	}
	return r
}

func newProgressCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "progress <session-id>",
		Short: "Show learning progress for a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			docs, err := a.sessionProgress(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			switch format {
			case "table":
				printProgress(cmd.OutOrStdout(), docs)
				return nil
			case "json", "yaml":
				return writeResult(cmd.OutOrStdout(), format, newSessionReport(sessionID, docs))
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json, yaml)")

	return cmd
}

func (a *app) sessionProgress(ctx context.Context, sessionID int64) ([]backend.DocumentProgress, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := a.backendClient()
	if err != nil {
		return nil, err
	}
	return client.SessionProgress(ctx, sessionID)
}

func printProgress(w io.Writer, docs []backend.DocumentProgress) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents in this session.")
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "DOCUMENT", "STATUS", "QUIZ", "PROGRESS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, d := range docs {
		t.Row(
			strconv.FormatInt(d.ID, 10),
			d.Filename,
			statusLabel(progress.StatusOf(d)),
			quizLabel(d),
			fmt.Sprintf("%.0f%%", d.ProgressPercentage),
		)
	}
	fmt.Fprintln(w, t.String())

	s := progress.Summarize(docs)
	fmt.Fprintf(w, "%d documents · %d read · %d quizzes completed · average %.1f%%\n",
		s.Documents, s.Read, s.QuizzesDone, s.Average)
}

func statusLabel(s progress.Status) string {
	switch s {
	case progress.Complete:
		return completeStyle.Render(string(s))
	case progress.Read:
		return readStyle.Render(string(s))
	default:
		return unreadStyle.Render(string(s))
	}
}

func quizLabel(d backend.DocumentProgress) string {
	switch {
	case !d.HasQuiz:
		return "-"
	case d.QuizScore != nil:
		return fmt.Sprintf("%.0f%%", *d.QuizScore)
	case d.QuizCompleted:
		return "done"
	default:
		return "pending"
	}
}
