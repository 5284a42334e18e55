package analytics

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

// memSink accumulates deltas in memory with the same CAS semantics the
// SQLite sink provides.
type memSink struct {
	mu     sync.Mutex
	marks  map[string]bool
	totals map[string]DailyDelta // userID + "/" + dayKey
}

func newMemSink() *memSink {
	return &memSink{
		marks:  map[string]bool{},
		totals: map[string]DailyDelta{},
	}
}

func (m *memSink) MarkFolded(_ context.Context, foldKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks[foldKey] {
		return false, nil
	}
	m.marks[foldKey] = true
	return true, nil
}

func (m *memSink) ApplyDailyDelta(_ context.Context, userID, dayKey string, d DailyDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + dayKey
	cur := m.totals[key]
	cur.Points += d.Points
	cur.Attempted += d.Attempted
	cur.Finalized += d.Finalized
	cur.Correct += d.Correct
	cur.Incorrect += d.Incorrect
	cur.HintCount += d.HintCount
	cur.TimeTotalMs += d.TimeTotalMs
	m.totals[key] = cur
	return nil
}

func (m *memSink) total(userID, dayKey string) DailyDelta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[userID+"/"+dayKey]
}

func TestAggregate_TwoFinalizedEvents(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	// One correct 5-point answer, one incorrect 8-point answer.
	e1 := finalEvent("e1", true, 5)
	e2 := finalEvent("e2", false, 8)

	for _, e := range []*AnswerEvent{e1, e2} {
		folded, err := agg.Aggregate(ctx, nil, e)
		if err != nil {
			t.Fatalf("aggregate %s: %v", e.EventID, err)
		}
		if !folded {
			t.Fatalf("aggregate %s: not folded", e.EventID)
		}
	}

	got := sink.total("u1", "2026-03-10")
	if got.Attempted != 2 || got.Finalized != 2 || got.Correct != 1 || got.Incorrect != 1 {
		t.Errorf("counters = %+v", got)
	}
	if got.Points != 5 {
		t.Errorf("Points = %d, want 5 (only correct answers earn points)", got.Points)
	}
}

func TestAggregate_DuplicateDeliveryFoldsOnce(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	e := finalEvent("e1", true, 5)
	for i := 0; i < 3; i++ {
		folded, err := agg.Aggregate(ctx, nil, e)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if (i == 0) != folded {
			t.Fatalf("delivery %d: folded = %v", i, folded)
		}
	}

	got := sink.total("u1", "2026-03-10")
	if got.Correct != 1 || got.Points != 5 || got.Attempted != 1 {
		t.Errorf("duplicates double-counted: %+v", got)
	}
}

func TestAggregate_DraftThenFinalCountsAttemptOnce(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	draft := draftEvent("e1")
	if _, err := agg.Aggregate(ctx, nil, draft); err != nil {
		t.Fatal(err)
	}
	final := finalEvent("e1", true, 5)
	if _, err := agg.Aggregate(ctx, draft, final); err != nil {
		t.Fatal(err)
	}

	// The draft landed on "today" (wall clock), the finalization on its
	// FinalizedAt day. Sum across days for the invariant check.
	var sum DailyDelta
	for _, d := range sink.totals {
		sum.Attempted += d.Attempted
		sum.Finalized += d.Finalized
		sum.Correct += d.Correct
	}
	if sum.Attempted != 1 {
		t.Errorf("Attempted = %d, want 1 (counted at creation only)", sum.Attempted)
	}
	if sum.Finalized != 1 || sum.Correct != 1 {
		t.Errorf("Finalized/Correct = %d/%d, want 1/1", sum.Finalized, sum.Correct)
	}
}

func TestAggregate_CorrectionAdjustsCounters(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	final := finalEvent("e1", false, 5)
	if _, err := agg.Aggregate(ctx, nil, final); err != nil {
		t.Fatal(err)
	}
	corrected := finalEvent("e1", true, 5)
	folded, err := agg.Aggregate(ctx, final, corrected)
	if err != nil {
		t.Fatal(err)
	}
	if !folded {
		t.Fatal("correction not folded")
	}

	got := sink.total("u1", "2026-03-10")
	if got.Correct != 1 || got.Incorrect != 0 || got.Points != 5 {
		t.Errorf("after correction: %+v", got)
	}
}

func TestAggregate_CorrectionRedeliveryFoldsOnce(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	final := finalEvent("e1", false, 5)
	if _, err := agg.Aggregate(ctx, nil, final); err != nil {
		t.Fatal(err)
	}

	// The same incorrect-to-correct correction delivered twice must
	// apply its signed delta exactly once.
	corrected := finalEvent("e1", true, 5)
	for i := 0; i < 2; i++ {
		folded, err := agg.Aggregate(ctx, final, corrected)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if (i == 0) != folded {
			t.Fatalf("delivery %d: folded = %v", i, folded)
		}
	}

	got := sink.total("u1", "2026-03-10")
	if got.Correct != 1 || got.Incorrect != 0 || got.Points != 5 {
		t.Errorf("redelivered correction double-counted: %+v", got)
	}

	// A genuine follow-up correction starts from the corrected state and
	// still folds.
	reverted := finalEvent("e1", false, 5)
	folded, err := agg.Aggregate(ctx, corrected, reverted)
	if err != nil {
		t.Fatal(err)
	}
	if !folded {
		t.Fatal("follow-up correction not folded")
	}
	got = sink.total("u1", "2026-03-10")
	if got.Correct != 0 || got.Incorrect != 1 || got.Points != 0 {
		t.Errorf("after follow-up correction: %+v", got)
	}
}

func TestAggregate_OrderIndependence(t *testing.T) {
	events := []*AnswerEvent{
		finalEvent("a", true, 3),
		finalEvent("b", false, 4),
		finalEvent("c", true, 7),
	}

	forward := newMemSink()
	agg := NewAggregator(forward, time.UTC, nil)
	for _, e := range events {
		if _, err := agg.Aggregate(context.Background(), nil, e); err != nil {
			t.Fatal(err)
		}
	}

	reversed := newMemSink()
	agg2 := NewAggregator(reversed, time.UTC, nil)
	for i := len(events) - 1; i >= 0; i-- {
		if _, err := agg2.Aggregate(context.Background(), nil, events[i]); err != nil {
			t.Fatal(err)
		}
	}

	if !reflect.DeepEqual(forward.total("u1", "2026-03-10"), reversed.total("u1", "2026-03-10")) {
		t.Errorf("order changed the aggregate: %+v vs %+v",
			forward.total("u1", "2026-03-10"), reversed.total("u1", "2026-03-10"))
	}
}

func TestAggregate_SkipsDeletionAndNoop(t *testing.T) {
	sink := newMemSink()
	agg := NewAggregator(sink, time.UTC, nil)
	ctx := context.Background()

	if folded, err := agg.Aggregate(ctx, finalEvent("e1", true, 5), nil); err != nil || folded {
		t.Errorf("deletion: folded=%v err=%v, want false/nil", folded, err)
	}

	e := finalEvent("e2", true, 5)
	if _, err := agg.Aggregate(ctx, nil, e); err != nil {
		t.Fatal(err)
	}
	if folded, err := agg.Aggregate(ctx, e, e); err != nil || folded {
		t.Errorf("noop write: folded=%v err=%v, want false/nil", folded, err)
	}
}

func TestAggregate_MissingUserIDFails(t *testing.T) {
	agg := NewAggregator(newMemSink(), time.UTC, nil)
	e := finalEvent("e1", true, 5)
	e.UserID = ""
	if _, err := agg.Aggregate(context.Background(), nil, e); err == nil {
		t.Fatal("expected error for missing userId")
	}
}
