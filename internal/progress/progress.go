package progress

import (
	"math"

	"github.com/recera/perplexia/internal/backend"
)

// Status is a document's learning state within a session
type Status string

const (
	Unread   Status = "unread"
	Read     Status = "read"
	Complete Status = "complete"
)

// Summary aggregates a session's document progress
type Summary struct {
	Documents   int     `json:"documents" yaml:"documents"`
	Read        int     `json:"read" yaml:"read"`
	QuizzesDone int     `json:"quizzes_done" yaml:"quizzes_done"`
	Average     float64 `json:"average" yaml:"average"`
}

// StatusOf classifies a document. quiz_completed is the completion signal;
// a quiz score alone does not complete a document. Reading a document that
// has no quiz completes it.
func StatusOf(d backend.DocumentProgress) Status {
	switch {
	case d.QuizCompleted:
		return Complete
	case d.HasRead && !d.HasQuiz:
		return Complete
	case d.HasRead:
		return Read
	default:
		return Unread
	}
}

// Summarize averages progress_percentage over docs, rounded to one decimal
func Summarize(docs []backend.DocumentProgress) Summary {
	s := Summary{Documents: len(docs)}
	if len(docs) == 0 {
		return s
	}

	var total float64
	for _, d := range docs {
		total += d.ProgressPercentage
		// Completing the quiz implies the document was read
		if d.HasRead || d.QuizCompleted {
			s.Read++
		}
		if d.QuizCompleted {
			s.QuizzesDone++
		}
	}
	s.Average = math.Round(total/float64(len(docs))*10) / 10
	return s
}
