package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/brainspark/engine/internal/content"
	"github.com/brainspark/engine/internal/llm"
)

// Strategy selects the grading pass strength.
type Strategy string

const (
	// StrategyStandard is the normal first-pass rubric grading.
	StrategyStandard Strategy = "standard"
	// StrategyStrict is the stronger second-pass strategy used for
	// escalation: a stricter system prompt at lower temperature.
	StrategyStrict Strategy = "strict"
)

// GraderConfig tunes the rubric grader.
type GraderConfig struct {
	MaxTokens   int
	Temperature float64

	// CorrectThreshold is the percentage at or above which a rubric item
	// classifies as correct. Exact-match items always require 100.
	CorrectThreshold int
	// IncorrectThreshold is the percentage below which an item
	// classifies as incorrect.
	IncorrectThreshold int
}

// DefaultGraderConfig returns the standard thresholds.
func DefaultGraderConfig() GraderConfig {
	return GraderConfig{
		MaxTokens:          2048,
		Temperature:        0.2,
		CorrectThreshold:   80,
		IncorrectThreshold: 50,
	}
}

// Grader produces a rubric-scored Result for one student response,
// delegating assessment to the model provider.
type Grader struct {
	provider llm.Provider
	cfg      GraderConfig
}

// NewGrader creates a rubric grader.
func NewGrader(provider llm.Provider, cfg GraderConfig) *Grader {
	if cfg.MaxTokens == 0 {
		cfg = DefaultGraderConfig()
	}
	return &Grader{provider: provider, cfg: cfg}
}

// gradeOutput is the raw model response shape, matching gradeSchema.
type gradeOutput struct {
	Percentage   int           `json:"percentage"`
	Confidence   float64       `json:"confidence"`
	Feedback     Feedback      `json:"feedback"`
	RubricScores []RubricScore `json:"rubricScores"`
}

// Grade assesses a student response against the resolved question.
// An empty (after trimming) response grades as incorrect with zero
// score without a model call — it is a gradable answer, not an error.
// Provider failures surface as Timeout or UpstreamFailure; they are
// never masked as a score.
func (g *Grader) Grade(ctx context.Context, q *content.Question, studentAnswer string, strategy Strategy) (*Result, error) {
	if err := precheckAnswer(studentAnswer); err != nil {
		return nil, err
	}

	answer := normalizeAnswer(studentAnswer)
	if answer == "" {
		return g.emptyAnswerResult(q), nil
	}

	ctx = llm.WithPurpose(ctx, "grading-"+string(strategy))

	userMsg, err := buildGradeMessage(q, answer)
	if err != nil {
		return nil, E(CodeInternal, "build prompt: %v", err)
	}

	system := standardSystemPrompt
	temperature := g.cfg.Temperature
	if strategy == StrategyStrict {
		system = strictSystemPrompt
		temperature = 0
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      gradeSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, mapProviderError(err)
	}

	var out gradeOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, &Error{
			Code:    CodeUpstreamFailure,
			Message: "unparseable grading response",
			Err:     fmt.Errorf("unmarshal grade output: %w", err),
		}
	}

	return g.buildResult(q, answer, &out, resp.Model), nil
}

func (g *Grader) buildResult(q *content.Question, answer string, out *gradeOutput, model string) *Result {
	pct := clampInt(out.Percentage, 0, 100)
	maxScore := q.QCS
	if maxScore <= 0 {
		maxScore = 1
	}

	confidence := clampFloat(out.Confidence, 0, 1)
	// Very short answers give the model little to judge; detected
	// misconceptions mean the read could be wrong either way.
	if len(answer) < 12 {
		confidence = math.Min(confidence, 0.5)
	}
	if len(out.Feedback.Misconceptions) > 0 {
		confidence = math.Min(confidence, 0.85)
	}

	return &Result{
		Score:        int(math.Round(float64(pct) / 100 * float64(maxScore))),
		MaxScore:     maxScore,
		Percentage:   pct,
		Correctness:  g.classify(pct, q.ExactMatch),
		RubricScores: out.RubricScores,
		Feedback:     out.Feedback,
		Confidence:   confidence,
		Engine:       model,
		GradedAt:     time.Now().UTC(),
	}
}

// classify maps a percentage to its correctness band.
func (g *Grader) classify(pct int, exactMatch bool) Correctness {
	correctAt := g.cfg.CorrectThreshold
	if exactMatch {
		correctAt = 100
	}
	switch {
	case pct >= correctAt:
		return Correct
	case pct < g.cfg.IncorrectThreshold:
		return Incorrect
	default:
		return Partial
	}
}

func (g *Grader) emptyAnswerResult(q *content.Question) *Result {
	maxScore := q.QCS
	if maxScore <= 0 {
		maxScore = 1
	}
	return &Result{
		Score:       0,
		MaxScore:    maxScore,
		Percentage:  0,
		Correctness: Incorrect,
		Feedback: Feedback{
			Summary:        "No answer was provided.",
			WhatWasMissing: []string{"A substantive response to the question"},
			Suggestions:    []string{"Review the reference material and attempt the question again."},
		},
		Confidence: 1,
		Engine:     "empty-answer",
		GradedAt:   time.Now().UTC(),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
