package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brainspark/engine/internal/grading"
)

// GetRubric returns the cached weak-rubric grading result for the
// question/answer pair.
func (s *Store) GetRubric(ctx context.Context, questionID, answerHash string) (*grading.CachedRubric, bool, error) {
	var resultJSON, storedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT result, stored_at FROM weak_rubrics
		WHERE question_id = ? AND answer_hash = ?`,
		questionID, answerHash).Scan(&resultJSON, &storedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get rubric cache: %w", err)
	}

	entry := &grading.CachedRubric{QuestionID: questionID, AnswerHash: answerHash}
	if err := json.Unmarshal([]byte(resultJSON), &entry.Result); err != nil {
		return nil, false, fmt.Errorf("get rubric cache: decode result: %w", err)
	}
	entry.StoredAt, err = time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return nil, false, fmt.Errorf("get rubric cache: parse stored_at: %w", err)
	}
	return entry, true, nil
}

// PutRubric stores a weak-rubric grading outcome, overwriting any
// existing entry for the same pair.
func (s *Store) PutRubric(ctx context.Context, entry *grading.CachedRubric) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("put rubric cache: encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weak_rubrics (question_id, answer_hash, result, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (question_id, answer_hash) DO UPDATE SET
			result = excluded.result,
			stored_at = excluded.stored_at`,
		entry.QuestionID, entry.AnswerHash, string(resultJSON),
		entry.StoredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put rubric cache: %w", err)
	}
	return nil
}

// AppendGradingHistory appends one graded attempt to the per-attempt
// log. The log is append-only.
func (s *Store) AppendGradingHistory(ctx context.Context, attemptID, questionID string, res *grading.Result) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("append grading history: encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO grading_history (attempt_id, question_id, result, created_at)
		VALUES (?, ?, ?, ?)`,
		attemptID, questionID, string(resultJSON),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append grading history: %w", err)
	}
	return nil
}

// GradingHistory returns the graded results recorded for an attempt,
// oldest first.
func (s *Store) GradingHistory(ctx context.Context, attemptID string) ([]*grading.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result FROM grading_history
		WHERE attempt_id = ? ORDER BY id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("grading history: %w", err)
	}
	defer rows.Close()

	var out []*grading.Result
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, fmt.Errorf("grading history: scan: %w", err)
		}
		res := &grading.Result{}
		if err := json.Unmarshal([]byte(resultJSON), res); err != nil {
			return nil, fmt.Errorf("grading history: decode result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
