package grading

import (
	"context"
	"errors"
	"time"

	"github.com/brainspark/engine/internal/content"
	"github.com/brainspark/engine/internal/logger"
)

const (
	// escalationConfidence is the confidence below which a first-pass
	// result is ambiguous enough to warrant a stricter second pass.
	escalationConfidence = 0.60

	defaultLatencyBudget = 30 * time.Second
	minLatencyBudget     = 1 * time.Second
	maxLatencyBudget     = 2 * time.Minute
)

// Orchestrator runs the full grading flow: validate, resolve the
// question, grade within the latency budget, escalate ambiguous results
// per policy, and persist cache/history entries.
type Orchestrator struct {
	resolver      content.Resolver
	grader        *Grader
	cache         RubricCache   // optional
	history       AppendHistory // optional
	log           *logger.Logger
	defaultBudget time.Duration
}

// NewOrchestrator wires up a grading orchestrator. cache and history may
// be nil, disabling weak-rubric caching and the attempt log.
func NewOrchestrator(resolver content.Resolver, grader *Grader, cache RubricCache, history AppendHistory, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		resolver:      resolver,
		grader:        grader,
		cache:         cache,
		history:       history,
		log:           log,
		defaultBudget: defaultLatencyBudget,
	}
}

// WithDefaultLatency overrides the budget applied when a request leaves
// maxLatencyMs unset. Clamped like a request budget; ms <= 0 keeps the
// built-in default.
func (o *Orchestrator) WithDefaultLatency(ms int) *Orchestrator {
	if ms > 0 {
		o.defaultBudget = clampBudget(time.Duration(ms) * time.Millisecond)
	}
	return o
}

// Grade runs one grading request end to end. Failures carry a Code; a
// failed grade never comes back as a zero score.
func (o *Orchestrator) Grade(ctx context.Context, req *Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	q, err := o.resolver.ResolveQuestion(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, E(CodeNotFound, "question %q not found", req.QuestionID)
		}
		return nil, &Error{Code: CodeInternal, Message: "resolve question", Err: err}
	}

	useCache := o.cache != nil && req.Options.PersistWeakRubric
	answerHash := ""
	if useCache {
		answerHash = hashAnswer(req.StudentAnswer)
		if cached, ok, cerr := o.cache.GetRubric(ctx, q.ID, answerHash); cerr != nil {
			o.log.Warn("rubric cache lookup failed", "questionId", q.ID, "error", cerr)
		} else if ok {
			res := cached.Result
			res.CacheHit = true
			o.appendHistory(ctx, req, &res)
			return &res, nil
		}
	}

	res, err := o.gradeWithBudget(ctx, req, q)
	if err != nil {
		return nil, err
	}

	// Persist only gradings that would otherwise be unstable: a thin
	// rubric, or a pass the grader itself was unsure about. Repeats of
	// the same answer then return the stored result instead of rolling
	// the dice again.
	if useCache && (weakRubric(q.Rubric) || res.Confidence < escalationConfidence) {
		entry := &CachedRubric{
			QuestionID: q.ID,
			AnswerHash: answerHash,
			Result:     *res,
			StoredAt:   time.Now().UTC(),
		}
		if cerr := o.cache.PutRubric(ctx, entry); cerr != nil {
			o.log.Warn("rubric cache store failed", "questionId", q.ID, "error", cerr)
		}
	}

	o.appendHistory(ctx, req, res)
	return res, nil
}

// gradeWithBudget runs the first pass plus any escalation inside one
// deadline. A first pass that overruns the budget surfaces a timeout,
// never a stale score. Escalation runs only on the budget left after
// the first pass, and an escalation overrun falls back to the completed
// first-pass result rather than discarding it.
func (o *Orchestrator) gradeWithBudget(ctx context.Context, req *Request, q *content.Question) (*Result, error) {
	budget := o.latencyBudget(req.Options.MaxLatencyMs)
	gctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	first, err := o.runPass(gctx, req, q, StrategyStandard)
	if err != nil {
		return nil, err
	}
	if !ambiguous(first) {
		return first, nil
	}

	switch req.Options.Escalation {
	case EscalationNone:
		return first, nil
	case EscalationManual:
		first.EscalationEligible = true
		return first, nil
	}

	if deadline, ok := gctx.Deadline(); ok && time.Until(deadline) < minLatencyBudget {
		// Not enough budget left for a second pass.
		first.EscalationEligible = true
		return first, nil
	}
	second, err := o.runPass(gctx, req, q, StrategyStrict)
	if err != nil {
		// A working first grade is never discarded for an escalation
		// failure, budget overruns included.
		o.log.Warn("escalation pass failed, keeping first pass",
			"questionId", q.ID, "error", err)
		first.EscalationEligible = true
		return first, nil
	}
	// When both passes complete, the higher-confidence result is
	// delivered; on a tie the strict pass wins since it graded with more
	// context.
	if first.Confidence > second.Confidence {
		first.Escalated = true
		return first, nil
	}
	second.Escalated = true
	return second, nil
}

// runPass runs one grading pass against the shared deadline. A result
// that arrives after the deadline is discarded.
func (o *Orchestrator) runPass(ctx context.Context, req *Request, q *content.Question, strategy Strategy) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.grader.Grade(ctx, q, req.StudentAnswer, strategy)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			o.log.Warn("grading pass exceeded latency budget",
				"questionId", q.ID, "strategy", strategy)
			return nil, &Error{Code: CodeTimeout, Message: "grading exceeded its latency budget", Err: ctx.Err()}
		}
		return nil, &Error{Code: CodeTimeout, Message: "grading call canceled", Err: ctx.Err()}
	}
}

func (o *Orchestrator) appendHistory(ctx context.Context, req *Request, res *Result) {
	if o.history == nil {
		return
	}
	if err := o.history.AppendGradingHistory(ctx, req.AttemptID, req.QuestionID, res); err != nil {
		o.log.Warn("grading history append failed",
			"attemptId", req.AttemptID, "error", err)
	}
}

// ambiguous reports whether a first-pass result should be considered for
// escalation: low grader confidence, or a score in the partial band.
func ambiguous(res *Result) bool {
	return res.Confidence < escalationConfidence || res.Correctness == Partial
}

func validateRequest(req *Request) error {
	switch {
	case req == nil:
		return E(CodeInvalidArgument, "request is nil")
	case req.AttemptID == "":
		return E(CodeInvalidArgument, "attemptId is required")
	case req.QuestionID == "":
		return E(CodeInvalidArgument, "questionId is required")
	}
	switch req.Options.Escalation {
	case "", EscalationAuto, EscalationManual, EscalationNone:
	default:
		return E(CodeInvalidArgument, "unknown escalation policy %q", req.Options.Escalation)
	}
	if req.Options.MaxLatencyMs < 0 {
		return E(CodeInvalidArgument, "maxLatencyMs must be non-negative")
	}
	return nil
}

func (o *Orchestrator) latencyBudget(maxLatencyMs int) time.Duration {
	if maxLatencyMs <= 0 {
		return o.defaultBudget
	}
	return clampBudget(time.Duration(maxLatencyMs) * time.Millisecond)
}

func clampBudget(d time.Duration) time.Duration {
	if d < minLatencyBudget {
		return minLatencyBudget
	}
	if d > maxLatencyBudget {
		return maxLatencyBudget
	}
	return d
}
