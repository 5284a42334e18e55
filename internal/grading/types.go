package grading

import "time"

// Correctness classifies a graded response.
type Correctness string

const (
	Correct   Correctness = "correct"
	Partial   Correctness = "partial"
	Incorrect Correctness = "incorrect"
)

// EscalationPolicy controls whether an ambiguous first pass is re-graded
// with the stricter strategy.
type EscalationPolicy string

const (
	// EscalationAuto re-grades automatically when the first pass is
	// ambiguous and budget allows.
	EscalationAuto EscalationPolicy = "auto"
	// EscalationManual only marks the result escalation-eligible; the
	// caller decides whether to re-grade.
	EscalationManual EscalationPolicy = "manual"
	// EscalationNone disables escalation entirely.
	EscalationNone EscalationPolicy = "none"
)

// RubricScore is one criterion's score within a graded result.
type RubricScore struct {
	Criterion string `json:"criterion"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"maxScore"`
	Feedback  string `json:"feedback,omitempty"`
}

// Feedback is the structured pedagogical feedback block.
type Feedback struct {
	Summary        string   `json:"summary"`
	WhatWasRight   []string `json:"whatWasRight"`
	WhatWasMissing []string `json:"whatWasMissing"`
	Misconceptions []string `json:"misconceptions"`
	Suggestions    []string `json:"suggestions"`
}

// Result is the immutable output of grading one answer. Produced once
// per attempt; downstream aggregation never mutates it.
type Result struct {
	Score              int           `json:"score"`
	MaxScore           int           `json:"maxScore"`
	Percentage         int           `json:"percentage"`
	Correctness        Correctness   `json:"correctness"`
	RubricScores       []RubricScore `json:"rubricScores"`
	Feedback           Feedback      `json:"feedback"`
	Confidence         float64       `json:"confidence"`
	Engine             string        `json:"engine"`
	Escalated          bool          `json:"escalated"`
	EscalationEligible bool          `json:"escalationEligible,omitempty"`
	CacheHit           bool          `json:"cacheHit,omitempty"`
	GradedAt           time.Time     `json:"gradedAt"`
}

// Options is the closed option set accepted by the grading endpoint.
type Options struct {
	PersistWeakRubric bool             `json:"persistWeakRubric,omitempty"`
	Escalation        EscalationPolicy `json:"escalation,omitempty"`
	MaxLatencyMs      int              `json:"maxLatencyMs,omitempty"`
}

// Request is one grading call.
type Request struct {
	AttemptID     string  `json:"attemptId"`
	QuestionID    string  `json:"questionId"`
	StudentAnswer string  `json:"studentAnswer"`
	Options       Options `json:"options"`
}
