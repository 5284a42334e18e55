package analytics

import "time"

// dayKeyLayout is the ISO calendar date used to key daily aggregates.
const dayKeyLayout = "2006-01-02"

// DayKey buckets a timestamp into the user-local calendar day. Late
// arriving but correctly timestamped events land in the day they were
// finalized, not the day they were processed.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayKeyLayout)
}
