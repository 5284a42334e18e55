package mastery

import "time"

// DecayConfig controls time-based forgetting.
type DecayConfig struct {
	// InactivityWindow is how long a topic may sit untouched before
	// decay starts.
	InactivityWindow time.Duration

	// RatePerDay is how many mastery points are lost per day past the
	// window.
	RatePerDay float64

	// Floor is the score decay never drops below.
	Floor float64
}

// DefaultDecayConfig returns the standard forgetting curve parameters.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		InactivityWindow: 14 * 24 * time.Hour,
		RatePerDay:       1.5,
		Floor:            30,
	}
}

// Decay returns the mastery score after applying time-based forgetting.
// score is the undecayed base derived from the attempt tallies, never a
// previously decayed value: the reduction is recomputed from elapsed
// time since lastActivity on every call, so re-deriving at the same
// instant always lands on the same result. It never increases the score
// and never drops below the floor (bases already under the floor are
// left alone).
func Decay(score float64, lastActivity, now time.Time, cfg DecayConfig) float64 {
	if lastActivity.IsZero() {
		return score
	}
	idle := now.Sub(lastActivity)
	if idle <= cfg.InactivityWindow {
		return score
	}
	if score <= cfg.Floor {
		return score
	}

	days := (idle - cfg.InactivityWindow).Hours() / 24
	decayed := score - days*cfg.RatePerDay
	if decayed < cfg.Floor {
		decayed = cfg.Floor
	}
	return round1(decayed)
}

// NeedsReview reports whether a topic is inside the pre-decay warning
// zone: within three days of its inactivity window, or already decaying.
func NeedsReview(lastActivity, now time.Time, cfg DecayConfig) bool {
	if lastActivity.IsZero() {
		return false
	}
	warn := cfg.InactivityWindow - 3*24*time.Hour
	if warn < 0 {
		warn = 0
	}
	return now.Sub(lastActivity) >= warn
}
