package backend

import (
	"bytes"
	"encoding/json"
)

// DocumentProgress is one row of a session progress listing
type DocumentProgress struct {
	ID                 int64           `json:"id"`
	Filename           string          `json:"filename"`
	HasQuiz            bool            `json:"has_quiz"`
	QuizID             *int64          `json:"quiz_id"`
	HasRead            bool            `json:"has_read"`
	QuizCompleted      bool            `json:"quiz_completed"`
	ProgressPercentage float64         `json:"progress_percentage"`
	QuizScore          *float64        `json:"quiz_score"`
	Mindmap            json.RawMessage `json:"mindmap"`
	Summary            *string         `json:"summary"`
}

// MindmapJSON returns the stored mindmap as a JSON document. The column is
// JSONB but older rows hold the document as a JSON string; both are
// accepted. It returns nil when no mindmap is stored.
func (d *DocumentProgress) MindmapJSON() []byte {
	raw := bytes.TrimSpace(d.Mindmap)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		return []byte(s)
	}
	return raw
}

// SummaryText returns the summary or the back end's placeholder
func (d *DocumentProgress) SummaryText() string {
	if d.Summary == nil || *d.Summary == "" {
		return "No summary available."
	}
	return *d.Summary
}

// Quiz is a multiple-choice quiz generated for a document
type Quiz struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []QuizQuestion `json:"questions"`
}

// QuizQuestion is a single question with its candidate answers
type QuizQuestion struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Type    string       `json:"type"`
	Answers []QuizAnswer `json:"answers"`
}

// QuizAnswer is one candidate answer
type QuizAnswer struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuizResult is the grade for a submission
type QuizResult struct {
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Progress       float64 `json:"progress"`
}
