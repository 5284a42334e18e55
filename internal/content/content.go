// Package content defines the question/content collaborator consumed by
// the grading engine. Question authoring and storage are outside the
// engine; this package only names the contract and the resolved shape.
package content

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a question id does not resolve.
var ErrNotFound = errors.New("question not found")

// Question is a resolved reference item: the stem plus whatever the
// grader needs to assess a response against it.
type Question struct {
	ID              string
	Stem            string
	ReferenceAnswer string
	Rubric          string // optional structured scoring guide, markdown
	Subject         string
	Topics          []string
	Difficulty      int // 1..5
	QCS             int // question complexity score = max points
	ExactMatch      bool
}

// Resolver resolves question ids to reference items.
type Resolver interface {
	ResolveQuestion(ctx context.Context, questionID string) (*Question, error)
}
