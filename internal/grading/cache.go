package grading

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// CachedRubric is one persisted weak-rubric grading outcome. Keyed by
// question and normalized answer hash, so re-grading the same answer to
// the same question returns a deterministic result without a model call.
type CachedRubric struct {
	QuestionID string
	AnswerHash string
	Result     Result
	StoredAt   time.Time
}

// RubricCache persists grading results for questions whose rubric was
// judged too weak to grade reliably, so repeat attempts stay consistent.
type RubricCache interface {
	// GetRubric returns the cached result for the question/answer pair,
	// or ok=false when none is stored.
	GetRubric(ctx context.Context, questionID, answerHash string) (*CachedRubric, bool, error)

	// PutRubric stores a grading outcome. Overwrites any existing entry
	// for the same pair.
	PutRubric(ctx context.Context, entry *CachedRubric) error
}

// AppendHistory is implemented by stores that also keep the per-attempt
// grading history log.
type AppendHistory interface {
	AppendGradingHistory(ctx context.Context, attemptID, questionID string, res *Result) error
}

// hashAnswer produces the cache key component for a student answer.
// Case and surrounding whitespace are not meaningful differences.
func hashAnswer(answer string) string {
	norm := strings.ToLower(strings.TrimSpace(answer))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// weakRubric reports whether the question's rubric is too thin for
// reliable grading. Such questions get cache-backed deterministic
// grading when the caller opts in.
func weakRubric(rubric string) bool {
	return len(strings.Fields(rubric)) < 8
}
