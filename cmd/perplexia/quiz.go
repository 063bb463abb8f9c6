package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recera/perplexia/internal/backend"
)

func newQuizCommand(a *app) *cobra.Command {
	var answers map[string]int64
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "quiz <pdf-id>",
		Short: "Show or answer a document's quiz",
		Long: `Without answers, prints the quiz generated for a document with question and
answer ids. Pass --answer QUESTION=ANSWER once per question to submit it and
print the grade.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pdf id %q", args[0])
			}
			if sessionID == 0 {
				sessionID = a.cfg.Backend.SessionID
			}
			picked, err := parseAnswers(answers)
			if err != nil {
				return err
			}
			if len(picked) > 0 && sessionID == 0 {
				return fmt.Errorf("submitting answers needs --session or backend.session_id")
			}
			return a.runQuiz(cmd.Context(), cmd.OutOrStdout(), pdfID, sessionID, picked)
		},
	}

	cmd.Flags().StringToInt64Var(&answers, "answer", nil, "Answer as QUESTION_ID=ANSWER_ID (repeatable)")
	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "Chat session id")

	return cmd
}

func parseAnswers(in map[string]int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(in))
	for q, ans := range in {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid question id %q", q)
		}
		out[id] = ans
	}
	return out, nil
}

func (a *app) runQuiz(ctx context.Context, w io.Writer, pdfID, sessionID int64, answers map[int64]int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := a.backendClient()
	if err != nil {
		return err
	}
	quiz, err := client.Quiz(ctx, pdfID)
	if err != nil {
		return err
	}

	if len(answers) == 0 {
		printQuiz(w, quiz)
		return nil
	}

	res, err := client.SubmitQuiz(ctx, quiz.ID, sessionID, answers)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d/%d correct, score %.0f%%, progress %.0f%%\n",
		quiz.Title, res.CorrectAnswers, res.TotalQuestions, res.Score, res.Progress)
	return nil
}

func printQuiz(w io.Writer, q *backend.Quiz) {
	fmt.Fprintln(w, headerStyle.Render(q.Title))
	if q.Description != "" {
		fmt.Fprintln(w, q.Description)
	}
	for i, question := range q.Questions {
		fmt.Fprintf(w, "\n%d. %s  [question %d]\n", i+1, question.Text, question.ID)
		for _, ans := range question.Answers {
			fmt.Fprintf(w, "   %4d  %s\n", ans.ID, ans.Text)
		}
	}
}
