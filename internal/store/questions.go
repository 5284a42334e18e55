package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brainspark/engine/internal/content"
)

// ResolveQuestion loads a reference item by id.
func (s *Store) ResolveQuestion(ctx context.Context, questionID string) (*content.Question, error) {
	q := &content.Question{}
	var topicsJSON string
	var exactMatch int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stem, reference_answer, rubric, subject, topics, difficulty, qcs, exact_match
		FROM questions WHERE id = ?`, questionID).Scan(
		&q.ID, &q.Stem, &q.ReferenceAnswer, &q.Rubric, &q.Subject,
		&topicsJSON, &q.Difficulty, &q.QCS, &exactMatch)
	if err == sql.ErrNoRows {
		return nil, content.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve question %q: %w", questionID, err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &q.Topics); err != nil {
		return nil, fmt.Errorf("resolve question %q: decode topics: %w", questionID, err)
	}
	q.ExactMatch = exactMatch != 0
	return q, nil
}

// UpsertQuestion stores or replaces a reference item. Used by content
// seeding and tests.
func (s *Store) UpsertQuestion(ctx context.Context, q *content.Question) error {
	topicsJSON, err := json.Marshal(q.Topics)
	if err != nil {
		return fmt.Errorf("upsert question %q: encode topics: %w", q.ID, err)
	}
	exactMatch := 0
	if q.ExactMatch {
		exactMatch = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions (id, stem, reference_answer, rubric, subject, topics, difficulty, qcs, exact_match)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			stem = excluded.stem,
			reference_answer = excluded.reference_answer,
			rubric = excluded.rubric,
			subject = excluded.subject,
			topics = excluded.topics,
			difficulty = excluded.difficulty,
			qcs = excluded.qcs,
			exact_match = excluded.exact_match`,
		q.ID, q.Stem, q.ReferenceAnswer, q.Rubric, q.Subject,
		string(topicsJSON), q.Difficulty, q.QCS, exactMatch)
	if err != nil {
		return fmt.Errorf("upsert question %q: %w", q.ID, err)
	}
	return nil
}
