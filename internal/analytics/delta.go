package analytics

// Triple is the per-subject / per-topic breakdown merged into a daily
// aggregate.
type Triple struct {
	Attempted   int
	Correct     int
	TimeTotalMs int
}

// DailyDelta is the set of commutative increments one answer-record
// write contributes to a user's daily aggregate. Every field is a signed
// delta so corrections to an already-final record adjust counters
// without a read-modify-write of the document.
type DailyDelta struct {
	Points      int
	Attempted   int
	Finalized   int
	Correct     int
	Incorrect   int
	HintCount   int
	TimeTotalMs int
	Subjects    map[string]Triple
	Topics      map[string]Triple
}

// IsZero reports whether the delta would change nothing.
func (d DailyDelta) IsZero() bool {
	return d.Points == 0 && d.Attempted == 0 && d.Finalized == 0 &&
		d.Correct == 0 && d.Incorrect == 0 && d.HintCount == 0 &&
		d.TimeTotalMs == 0 && len(d.Subjects) == 0 && len(d.Topics) == 0
}

// countedCorrect reports whether the event state contributes to the
// correct counter: only finalized, graded-correct answers count.
func countedCorrect(e *AnswerEvent) bool {
	return e != nil && e.IsFinal && e.Correct()
}

// countedIncorrect mirrors countedCorrect for the incorrect counter.
// A finalized answer that is not correct counts as incorrect.
func countedIncorrect(e *AnswerEvent) bool {
	return e != nil && e.IsFinal && !e.Correct()
}

func finalized(e *AnswerEvent) int {
	if e != nil && e.IsFinal {
		return 1
	}
	return 0
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ComputeDelta derives the daily-aggregate increments from the
// before/after states of one answer record.
//
// Draft writes (after not final) contribute only to attempted, and only
// on record creation. Finalization contributes the full counter set.
// A write that changes an already-final record (a grading correction)
// contributes signed adjustments.
func ComputeDelta(before, after *AnswerEvent) DailyDelta {
	d := DailyDelta{
		Subjects: map[string]Triple{},
		Topics:   map[string]Triple{},
	}

	created := before == nil
	if created {
		d.Attempted = 1
	}

	d.Finalized = finalized(after) - finalized(before)
	d.Correct = b2i(countedCorrect(after)) - b2i(countedCorrect(before))
	d.Incorrect = b2i(countedIncorrect(after)) - b2i(countedIncorrect(before))

	// Points, hints and time are gated on finality so drafts never
	// prematurely count toward them.
	afterPoints, beforePoints := 0, 0
	if countedCorrect(after) {
		afterPoints = after.QCS
	}
	if countedCorrect(before) {
		beforePoints = before.QCS
	}
	d.Points = afterPoints - beforePoints

	afterHints, beforeHints := 0, 0
	afterTime, beforeTime := 0, 0
	if after != nil && after.IsFinal {
		afterHints = after.HintUses
		afterTime = after.TimeTakenMs
	}
	if before != nil && before.IsFinal {
		beforeHints = before.HintUses
		beforeTime = before.TimeTakenMs
	}
	d.HintCount = afterHints - beforeHints
	d.TimeTotalMs = afterTime - beforeTime

	if after == nil {
		return d
	}

	breakdown := Triple{
		Attempted:   d.Attempted,
		Correct:     d.Correct,
		TimeTotalMs: d.TimeTotalMs,
	}

	if after.Subject != "" && breakdown != (Triple{}) {
		d.Subjects[after.Subject] = breakdown
	}
	for _, topic := range after.Topics {
		if topic == "" || breakdown == (Triple{}) {
			continue
		}
		d.Topics[topic] = breakdown
	}

	return d
}
