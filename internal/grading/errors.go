package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/brainspark/engine/internal/llm"
)

// Code identifies one grading failure class. The set is closed; callers
// switch on it to decide retry behavior and HTTP status.
type Code string

const (
	// CodeInvalidArgument marks malformed or missing request fields.
	// Never retried.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeNotFound marks an unknown question or attempt.
	CodeNotFound Code = "not_found"
	// CodeTimeout marks a grading call that exceeded its latency budget.
	CodeTimeout Code = "timeout"
	// CodeUpstreamFailure marks a grading backend error distinct from a
	// timeout.
	CodeUpstreamFailure Code = "upstream_failure"
	// CodeContentRejected marks a response that failed the safety
	// pre-check.
	CodeContentRejected Code = "content_rejected"
	// CodeInternal marks an unexpected engine fault.
	CodeInternal Code = "internal"
)

// Error is a grading failure with a stable code. A failed grade is never
// downgraded to a zero score — that would poison downstream mastery data
// with false negatives.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a grading error.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the grading code from an error chain, defaulting to
// CodeInternal.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// mapProviderError translates model-provider failures into the grading
// taxonomy. Timeouts stay timeouts; everything else from the backend is
// an upstream failure.
func mapProviderError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTimeout, Message: "grading exceeded its latency budget", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Code: CodeTimeout, Message: "grading call canceled", Err: err}
	}

	var unavail *llm.ErrProviderUnavailable
	var rate *llm.ErrRateLimit
	var invalid *llm.ErrInvalidResponse
	var maxTok *llm.ErrMaxTokensExceeded
	switch {
	case errors.As(err, &unavail), errors.As(err, &rate),
		errors.As(err, &invalid), errors.As(err, &maxTok):
		return &Error{Code: CodeUpstreamFailure, Message: "grading backend unavailable", Err: err}
	}
	return &Error{Code: CodeUpstreamFailure, Message: "grading backend error", Err: err}
}
