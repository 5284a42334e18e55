package mastery

import (
	"math"
	"time"
)

const (
	// confidenceSaturation is the attempt count at which the confidence
	// term reaches its maximum.
	confidenceSaturation = 10

	// accuracyWeight and confidenceWeight split the 0-100 mastery scale.
	accuracyWeight   = 70.0
	confidenceWeight = 30.0
)

// TopicMastery is the derived per-(user, topic) mastery record.
type TopicMastery struct {
	Topic        string    `json:"topic"`
	Mastery      float64   `json:"mastery"` // 0..100, one decimal
	Level        string    `json:"level"`
	Attempts     int       `json:"attempts"`
	Correct      int       `json:"correct"`
	LastActivity time.Time `json:"lastActivity"`
	Trend7d      float64   `json:"trend7d"`
	NeedsReview  bool      `json:"needsReview"`
}

// Score computes the confidence-weighted mastery score from an attempt
// history. Accuracy carries 70 points; the remaining 30 reward
// repetition, saturating at ten attempts. A single lucky answer scores
// 73.0, not 100 — mastery is earned, never granted.
func Score(attempts, correct int) float64 {
	if attempts <= 0 {
		return 0.0
	}
	accuracy := float64(correct) / float64(attempts)
	confidence := math.Min(float64(attempts)/confidenceSaturation, 1.0)
	return round1(accuracy*accuracyWeight + confidence*confidenceWeight)
}

// Trend returns the 7-day trend given the current score and an optional
// prior snapshot. Without a snapshot at least seven days old the trend
// is 0 — "no signal yet", never null.
func Trend(current float64, prior float64, hasPrior bool) float64 {
	if !hasPrior {
		return 0
	}
	return round1(current - prior)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
