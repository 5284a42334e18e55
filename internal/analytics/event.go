package analytics

import "time"

// AnswerEvent is one student's response to one question, as written to
// the answer record. The aggregation trigger delivers before/after pairs
// of this shape.
type AnswerEvent struct {
	EventID     string     `json:"eventId"`
	UserID      string     `json:"userId"`
	QuestionID  string     `json:"questionId"`
	SetID       string     `json:"setId"`
	Subject     string     `json:"subject"`
	Topics      []string   `json:"topics"`
	Difficulty  int        `json:"difficulty"`
	QCS         int        `json:"qcs"`
	IsCorrect   *bool      `json:"isCorrect"` // nil until graded
	HintUses    int        `json:"hintUses"`
	TimeTakenMs int        `json:"timeTakenMs"`
	IsFinal     bool       `json:"isFinal"`
	FinalizedAt *time.Time `json:"finalizedAt"`
}

// Correct reports the graded correctness, treating ungraded as incorrect
// for counting purposes.
func (e *AnswerEvent) Correct() bool {
	return e.IsCorrect != nil && *e.IsCorrect
}
