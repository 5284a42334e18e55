package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brainspark/engine/internal/analytics"
)

// MarkFolded records the idempotency mark for a fold key. The INSERT OR
// IGNORE is the compare-and-set: rows-affected zero means another fold
// already claimed the key.
func (s *Store) MarkFolded(ctx context.Context, foldKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fold_marks (fold_key) VALUES (?)`, foldKey)
	if err != nil {
		return false, fmt.Errorf("mark folded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark folded: rows affected: %w", err)
	}
	return n > 0, nil
}

// ApplyDailyDelta merges the delta into the (userID, dayKey) aggregate.
// Every column update is of the form x = x + ?, so concurrent deltas
// for the same row commute; the whole delta applies in one transaction.
func (s *Store) ApplyDailyDelta(ctx context.Context, userID, dayKey string, d analytics.DailyDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply daily delta: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_aggregates
			(user_id, day_key, points, attempted, finalized, correct, incorrect, hint_count, time_total_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day_key) DO UPDATE SET
			points        = points + excluded.points,
			attempted     = attempted + excluded.attempted,
			finalized     = finalized + excluded.finalized,
			correct       = correct + excluded.correct,
			incorrect     = incorrect + excluded.incorrect,
			hint_count    = hint_count + excluded.hint_count,
			time_total_ms = time_total_ms + excluded.time_total_ms`,
		userID, dayKey, d.Points, d.Attempted, d.Finalized, d.Correct,
		d.Incorrect, d.HintCount, d.TimeTotalMs)
	if err != nil {
		return fmt.Errorf("apply daily delta: aggregate row: %w", err)
	}

	for subject, t := range d.Subjects {
		if err := upsertBreakdown(ctx, tx, "daily_subjects", "subject", userID, dayKey, subject, t); err != nil {
			return err
		}
	}
	for topic, t := range d.Topics {
		if err := upsertBreakdown(ctx, tx, "daily_topics", "topic", userID, dayKey, topic, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply daily delta: commit: %w", err)
	}
	return nil
}

func upsertBreakdown(ctx context.Context, tx *sql.Tx, table, keyCol, userID, dayKey, key string, t analytics.Triple) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (user_id, day_key, %s, attempted, correct, time_total_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day_key, %s) DO UPDATE SET
			attempted     = attempted + excluded.attempted,
			correct       = correct + excluded.correct,
			time_total_ms = time_total_ms + excluded.time_total_ms`,
		table, keyCol, keyCol)
	if _, err := tx.ExecContext(ctx, q, userID, dayKey, key, t.Attempted, t.Correct, t.TimeTotalMs); err != nil {
		return fmt.Errorf("apply daily delta: %s %q: %w", table, key, err)
	}
	return nil
}

// DailyAggregate is one user-day counter document as stored.
type DailyAggregate struct {
	UserID      string
	DayKey      string
	Points      int
	Attempted   int
	Finalized   int
	Correct     int
	Incorrect   int
	HintCount   int
	TimeTotalMs int
	Subjects    map[string]analytics.Triple
	Topics      map[string]analytics.Triple
}

// GetDailyAggregate reads back the aggregate for one user-day, or nil
// when the user has no activity that day.
func (s *Store) GetDailyAggregate(ctx context.Context, userID, dayKey string) (*DailyAggregate, error) {
	agg := &DailyAggregate{UserID: userID, DayKey: dayKey}
	err := s.db.QueryRowContext(ctx, `
		SELECT points, attempted, finalized, correct, incorrect, hint_count, time_total_ms
		FROM daily_aggregates WHERE user_id = ? AND day_key = ?`,
		userID, dayKey).Scan(
		&agg.Points, &agg.Attempted, &agg.Finalized, &agg.Correct,
		&agg.Incorrect, &agg.HintCount, &agg.TimeTotalMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily aggregate: %w", err)
	}

	agg.Subjects, err = s.readBreakdown(ctx, "daily_subjects", "subject", userID, dayKey)
	if err != nil {
		return nil, err
	}
	agg.Topics, err = s.readBreakdown(ctx, "daily_topics", "topic", userID, dayKey)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func (s *Store) readBreakdown(ctx context.Context, table, keyCol, userID, dayKey string) (map[string]analytics.Triple, error) {
	q := fmt.Sprintf(`SELECT %s, attempted, correct, time_total_ms FROM %s WHERE user_id = ? AND day_key = ?`, keyCol, table)
	rows, err := s.db.QueryContext(ctx, q, userID, dayKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]analytics.Triple)
	for rows.Next() {
		var key string
		var t analytics.Triple
		if err := rows.Scan(&key, &t.Attempted, &t.Correct, &t.TimeTotalMs); err != nil {
			return nil, fmt.Errorf("read %s: scan: %w", table, err)
		}
		out[key] = t
	}
	return out, rows.Err()
}
