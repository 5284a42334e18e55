package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brainspark/engine/internal/mastery"
)

// IncrementTopic bumps the attempt tally for (userID, topic) and
// returns the updated counts. The upsert plus RETURNING keeps the
// read-back atomic with the increment.
func (s *Store) IncrementTopic(ctx context.Context, userID, topic string, correct bool, at time.Time) (attempts, correctCount int, err error) {
	inc := 0
	if correct {
		inc = 1
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO topic_mastery (user_id, topic, attempts, correct_count, last_activity)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (user_id, topic) DO UPDATE SET
			attempts      = attempts + 1,
			correct_count = correct_count + excluded.correct_count,
			last_activity = excluded.last_activity
		RETURNING attempts, correct_count`,
		userID, topic, inc, at.UTC().Format(time.RFC3339Nano)).Scan(&attempts, &correctCount)
	if err != nil {
		return 0, 0, fmt.Errorf("increment topic %q: %w", topic, err)
	}
	return attempts, correctCount, nil
}

// SetTopicMastery writes the recomputed score and activity time.
func (s *Store) SetTopicMastery(ctx context.Context, userID, topic string, score float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE topic_mastery SET mastery = ?, last_activity = ?
		WHERE user_id = ? AND topic = ?`,
		score, at.UTC().Format(time.RFC3339Nano), userID, topic)
	if err != nil {
		return fmt.Errorf("set topic mastery %q: %w", topic, err)
	}
	return nil
}

// GetTopicRecord returns the stored record, or nil when the user has no
// history for the topic.
func (s *Store) GetTopicRecord(ctx context.Context, userID, topic string) (*mastery.TopicRecord, error) {
	rec := &mastery.TopicRecord{Topic: topic}
	var lastActivity string
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts, correct_count, mastery, last_activity
		FROM topic_mastery WHERE user_id = ? AND topic = ?`,
		userID, topic).Scan(&rec.Attempts, &rec.Correct, &rec.Mastery, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic record %q: %w", topic, err)
	}
	rec.LastActivity, err = time.Parse(time.RFC3339Nano, lastActivity)
	if err != nil {
		return nil, fmt.Errorf("get topic record %q: parse last_activity: %w", topic, err)
	}
	return rec, nil
}

// AllTopicRecords returns every stored record for the user, ordered by
// topic.
func (s *Store) AllTopicRecords(ctx context.Context, userID string) ([]*mastery.TopicRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, attempts, correct_count, mastery, last_activity
		FROM topic_mastery WHERE user_id = ? ORDER BY topic`, userID)
	if err != nil {
		return nil, fmt.Errorf("all topic records: %w", err)
	}
	defer rows.Close()

	var out []*mastery.TopicRecord
	for rows.Next() {
		rec := &mastery.TopicRecord{}
		var lastActivity string
		if err := rows.Scan(&rec.Topic, &rec.Attempts, &rec.Correct, &rec.Mastery, &lastActivity); err != nil {
			return nil, fmt.Errorf("all topic records: scan: %w", err)
		}
		rec.LastActivity, err = time.Parse(time.RFC3339Nano, lastActivity)
		if err != nil {
			return nil, fmt.Errorf("all topic records: parse last_activity: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MasteryUserIDs returns every user with stored topic history, ordered.
func (s *Store) MasteryUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM topic_mastery ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("mastery user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("mastery user ids: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SaveMasterySnapshot upserts the day's closing score for trend
// computation. Re-saves within the same day overwrite, so the snapshot
// always holds the day's latest value.
func (s *Store) SaveMasterySnapshot(ctx context.Context, userID, topic, dayKey string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mastery_snapshots (user_id, topic, day_key, mastery)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, topic, day_key) DO UPDATE SET
			mastery = excluded.mastery`,
		userID, topic, dayKey, score)
	if err != nil {
		return fmt.Errorf("save mastery snapshot %q/%s: %w", topic, dayKey, err)
	}
	return nil
}

// MasterySnapshotBefore returns the most recent snapshot at or before
// cutoff, with ok=false when none exists. Day keys sort
// lexicographically as dates.
func (s *Store) MasterySnapshotBefore(ctx context.Context, userID, topic string, cutoff time.Time) (float64, bool, error) {
	cutoffKey := cutoff.UTC().Format("2006-01-02")
	var score float64
	err := s.db.QueryRowContext(ctx, `
		SELECT mastery FROM mastery_snapshots
		WHERE user_id = ? AND topic = ? AND day_key <= ?
		ORDER BY day_key DESC LIMIT 1`,
		userID, topic, cutoffKey).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mastery snapshot before %s: %w", cutoffKey, err)
	}
	return score, true, nil
}
