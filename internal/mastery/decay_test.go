package mastery

import (
	"testing"
	"time"
)

func decayConfig() DecayConfig {
	return DecayConfig{
		InactivityWindow: 14 * 24 * time.Hour,
		RatePerDay:       1.5,
		Floor:            30,
	}
}

func TestDecay_InsideWindowUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-13 * 24 * time.Hour)

	if got := Decay(80, last, now, decayConfig()); !almostEqual(got, 80) {
		t.Errorf("Decay inside window = %f, want 80", got)
	}
}

func TestDecay_PastWindowLosesPointsPerDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// 4 days past the 14-day window: 80 - 4*1.5 = 74.0
	last := now.Add(-18 * 24 * time.Hour)

	if got := Decay(80, last, now, decayConfig()); !almostEqual(got, 74.0) {
		t.Errorf("Decay 4 days past window = %f, want 74.0", got)
	}
}

func TestDecay_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-20 * 24 * time.Hour)
	cfg := decayConfig()

	// The reduction is a function of elapsed time against the undecayed
	// base, so rederiving at the same instant always lands on the same
	// value no matter how many passes ran before.
	once := Decay(85, last, now, cfg)
	twice := Decay(85, last, now, cfg)
	if !almostEqual(once, twice) {
		t.Errorf("Decay not idempotent: once=%f twice=%f", once, twice)
	}
	// 6 days past the window: 85 - 6*1.5 = 76.0
	if !almostEqual(once, 76.0) {
		t.Errorf("Decay = %f, want 76.0", once)
	}
}

func TestDecay_MonotonicOverTime(t *testing.T) {
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := decayConfig()

	prev := 90.0
	for day := 0; day <= 120; day++ {
		now := last.Add(time.Duration(day) * 24 * time.Hour)
		got := Decay(90, last, now, cfg)
		if got > prev+epsilon {
			t.Fatalf("day %d: decay increased from %f to %f", day, prev, got)
		}
		prev = got
	}
}

func TestDecay_NeverBelowFloor(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-365 * 24 * time.Hour)

	if got := Decay(95, last, now, decayConfig()); !almostEqual(got, 30) {
		t.Errorf("Decay after a year = %f, want floor 30", got)
	}
}

func TestDecay_BelowFloorLeftAlone(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-60 * 24 * time.Hour)

	if got := Decay(20, last, now, decayConfig()); !almostEqual(got, 20) {
		t.Errorf("Decay of sub-floor score = %f, want 20 unchanged", got)
	}
}

func TestDecay_ZeroLastActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := Decay(50, time.Time{}, now, decayConfig()); !almostEqual(got, 50) {
		t.Errorf("Decay with zero lastActivity = %f, want 50", got)
	}
}

func TestNeedsReview(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := decayConfig()

	cases := []struct {
		name string
		idle time.Duration
		want bool
	}{
		{"fresh", 2 * 24 * time.Hour, false},
		{"ten days idle", 10 * 24 * time.Hour, false},
		{"warning zone", 12 * 24 * time.Hour, true},
		{"decaying", 20 * 24 * time.Hour, true},
	}
	for _, tc := range cases {
		got := NeedsReview(now.Add(-tc.idle), now, cfg)
		if got != tc.want {
			t.Errorf("%s: NeedsReview = %v, want %v", tc.name, got, tc.want)
		}
	}
}
