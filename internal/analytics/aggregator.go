package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brainspark/engine/internal/logger"
)

// Sink is the document-store contract the aggregator folds into. All
// mutations are commutative increments on independent counters, so
// concurrent folds for the same user/day commute; MarkFolded is the one
// compare-and-set.
type Sink interface {
	// MarkFolded atomically records that the given fold key has been
	// applied. It returns false when the key was already marked, in
	// which case the caller must not fold again.
	MarkFolded(ctx context.Context, foldKey string) (bool, error)

	// ApplyDailyDelta merges the delta into the (userID, dayKey) daily
	// aggregate with atomic increments. Missing documents are created.
	ApplyDailyDelta(ctx context.Context, userID, dayKey string, d DailyDelta) error
}

// Aggregator folds answer-record writes into per-user daily aggregates.
// It is stateless; each fold runs to completion or fails entirely.
type Aggregator struct {
	sink Sink
	loc  *time.Location
	now  func() time.Time
	log  *logger.Logger
}

// NewAggregator creates an Aggregator bucketing days in loc (UTC if nil).
func NewAggregator(sink Sink, loc *time.Location, log *logger.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{sink: sink, loc: loc, now: time.Now, log: log}
}

// Aggregate folds one answer-record write, given its before/after
// states, into the owning user's daily aggregate. It returns whether the
// write was folded (false when it was a duplicate delivery or a no-op).
//
// Exactly-once accounting: every fold is guarded by a compare-and-set.
// Record creation and the transition into the final state key on the
// event id plus the transition; corrections to an already-final record
// key on the content of the change, so at-least-once delivery from the
// upstream trigger cannot double-count any of them.
func (a *Aggregator) Aggregate(ctx context.Context, before, after *AnswerEvent) (bool, error) {
	if after == nil {
		// Record deletion; history is append-only, nothing to fold.
		return false, nil
	}
	if after.UserID == "" {
		return false, fmt.Errorf("aggregate: event %q has no userId", after.EventID)
	}

	delta := ComputeDelta(before, after)
	if delta.IsZero() {
		return false, nil
	}

	ok, err := a.sink.MarkFolded(ctx, a.foldKey(before, after))
	if err != nil {
		return false, fmt.Errorf("aggregate: mark folded: %w", err)
	}
	if !ok {
		a.log.Debug("duplicate delivery skipped", "event", after.EventID)
		return false, nil
	}

	dayKey := a.dayKey(after)
	if err := a.sink.ApplyDailyDelta(ctx, after.UserID, dayKey, delta); err != nil {
		return false, fmt.Errorf("aggregate: apply delta for %s/%s: %w", after.UserID, dayKey, err)
	}

	a.log.Debug("folded answer event",
		"event", after.EventID, "user", after.UserID, "day", dayKey,
		"final", after.IsFinal)
	return true, nil
}

// foldKey returns the idempotency key for this transition.
func (a *Aggregator) foldKey(before, after *AnswerEvent) string {
	switch {
	case !after.IsFinal && before == nil:
		return after.EventID + ":draft"
	case after.IsFinal && (before == nil || !before.IsFinal):
		return after.EventID + ":final"
	default:
		// Post-finalization corrections have no natural transition marker,
		// so key on the content of the change. A redelivered correction
		// repeats the identical before/after pair (the first fold already
		// moved the record to after, so the same pair cannot recur as a
		// genuine new write) and is skipped; a real follow-up correction
		// starts from a different before state and gets a fresh key.
		return after.EventID + ":corr:" + correctionHash(before, after)
	}
}

func correctionHash(before, after *AnswerEvent) string {
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)
	sum := sha256.Sum256(append(append(b, '|'), a...))
	return hex.EncodeToString(sum[:])[:16]
}

// dayKey derives the aggregate bucket from the event's finalization
// time, falling back to the current time only when absent.
func (a *Aggregator) dayKey(e *AnswerEvent) string {
	if e.FinalizedAt != nil {
		return DayKey(*e.FinalizedAt, a.loc)
	}
	return DayKey(a.now(), a.loc)
}
