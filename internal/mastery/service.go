package mastery

import (
	"context"
	"fmt"
	"time"
)

// TopicRecord is the stored per-(user, topic) attempt tally plus the
// memoized mastery score.
type TopicRecord struct {
	Topic        string
	Attempts     int
	Correct      int
	Mastery      float64
	LastActivity time.Time
}

// Store is the persistence contract for mastery state. Increments are
// atomic; the returned tallies reflect the post-increment state so the
// score can be recomputed from the full triple without a read round trip
// racing other writers.
type Store interface {
	// IncrementTopic atomically bumps the attempt tally for
	// (userID, topic), creating the row if needed, and returns the
	// updated tallies.
	IncrementTopic(ctx context.Context, userID, topic string, correct bool, at time.Time) (attempts, correctCount int, err error)

	// SetTopicMastery writes the recomputed score and activity time.
	SetTopicMastery(ctx context.Context, userID, topic string, score float64, at time.Time) error

	// GetTopicRecord returns the stored record, or nil when the user has
	// no history for the topic.
	GetTopicRecord(ctx context.Context, userID, topic string) (*TopicRecord, error)

	// AllTopicRecords returns every stored record for the user.
	AllTopicRecords(ctx context.Context, userID string) ([]*TopicRecord, error)

	// SaveMasterySnapshot upserts the day's closing score for trend
	// computation.
	SaveMasterySnapshot(ctx context.Context, userID, topic, dayKey string, score float64) error

	// MasterySnapshotBefore returns the most recent snapshot at or
	// before cutoff, with ok=false when none exists.
	MasterySnapshotBefore(ctx context.Context, userID, topic string, cutoff time.Time) (score float64, ok bool, err error)
}

// Service recomputes mastery from attempt history and serves the
// mastery read API.
type Service struct {
	store Store
	bands Bands
	decay DecayConfig
	now   func() time.Time
}

// NewService creates a mastery service. Zero-value bands or decay fall
// back to defaults.
func NewService(store Store, bands Bands, decay DecayConfig) *Service {
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	if decay == (DecayConfig{}) {
		decay = DefaultDecayConfig()
	}
	return &Service{store: store, bands: bands, decay: decay, now: time.Now}
}

// RecordAnswer folds one finalized answer into every listed topic's
// mastery: increment the tally, recompute the score from the full
// (attempts, correct) pair, persist it, and snapshot the day for trend
// history. The score is always derived, never independently mutated.
func (s *Service) RecordAnswer(ctx context.Context, userID string, topics []string, correct bool, at time.Time) error {
	if userID == "" {
		return fmt.Errorf("mastery: empty userId")
	}
	if at.IsZero() {
		at = s.now()
	}
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		attempts, correctCount, err := s.store.IncrementTopic(ctx, userID, topic, correct, at)
		if err != nil {
			return fmt.Errorf("mastery: increment %s/%s: %w", userID, topic, err)
		}
		score := Score(attempts, correctCount)
		if err := s.store.SetTopicMastery(ctx, userID, topic, score, at); err != nil {
			return fmt.Errorf("mastery: set score %s/%s: %w", userID, topic, err)
		}
		dayKey := at.UTC().Format("2006-01-02")
		if err := s.store.SaveMasterySnapshot(ctx, userID, topic, dayKey, score); err != nil {
			return fmt.Errorf("mastery: snapshot %s/%s: %w", userID, topic, err)
		}
	}
	return nil
}

// GetTopicMastery returns the derived mastery view for one topic, or
// nil when the user has no history for it.
func (s *Service) GetTopicMastery(ctx context.Context, userID, topic string) (*TopicMastery, error) {
	rec, err := s.store.GetTopicRecord(ctx, userID, topic)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return s.view(ctx, userID, rec)
}

// GetAllTopicMastery returns the derived mastery view for every topic
// the user has touched.
func (s *Service) GetAllTopicMastery(ctx context.Context, userID string) ([]*TopicMastery, error) {
	recs, err := s.store.AllTopicRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*TopicMastery, 0, len(recs))
	for _, rec := range recs {
		tm, err := s.view(ctx, userID, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, nil
}

// ApplyDecay runs the forgetting pass over all of a user's topics,
// persisting reduced scores. Safe to re-run: each pass rederives the
// score from the attempt tallies before subtracting the elapsed-time
// reduction, so an already-persisted decay is never decayed again.
func (s *Service) ApplyDecay(ctx context.Context, userID string) error {
	recs, err := s.store.AllTopicRecords(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now()
	for _, rec := range recs {
		base := Score(rec.Attempts, rec.Correct)
		decayed := Decay(base, rec.LastActivity, now, s.decay)
		if decayed == rec.Mastery {
			continue
		}
		// Persist the decayed score without touching LastActivity:
		// decay is forgetting, not activity.
		if err := s.store.SetTopicMastery(ctx, userID, rec.Topic, decayed, rec.LastActivity); err != nil {
			return fmt.Errorf("mastery: decay %s/%s: %w", userID, rec.Topic, err)
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, userID string, rec *TopicRecord) (*TopicMastery, error) {
	now := s.now()
	cutoff := now.AddDate(0, 0, -7)
	prior, hasPrior, err := s.store.MasterySnapshotBefore(ctx, userID, rec.Topic, cutoff)
	if err != nil {
		return nil, err
	}

	// Decay works from the tally-derived base, not the stored memo, so a
	// read after a persisted decay pass reports the same value instead of
	// subtracting the reduction a second time.
	score := Decay(Score(rec.Attempts, rec.Correct), rec.LastActivity, now, s.decay)

	return &TopicMastery{
		Topic:        rec.Topic,
		Mastery:      score,
		Level:        s.bands.LevelFor(score),
		Attempts:     rec.Attempts,
		Correct:      rec.Correct,
		LastActivity: rec.LastActivity,
		Trend7d:      Trend(score, prior, hasPrior),
		NeedsReview:  NeedsReview(rec.LastActivity, now, s.decay),
	}, nil
}
