// Package store is the SQLite persistence layer behind aggregation,
// mastery, grading caches, and the LLM request log.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    stem TEXT NOT NULL,
    reference_answer TEXT NOT NULL,
    rubric TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL,
    topics TEXT NOT NULL DEFAULT '[]',
    difficulty INTEGER NOT NULL DEFAULT 1,
    qcs INTEGER NOT NULL DEFAULT 1,
    exact_match INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fold_marks (
    fold_key TEXT PRIMARY KEY,
    marked_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS daily_aggregates (
    user_id TEXT NOT NULL,
    day_key TEXT NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    attempted INTEGER NOT NULL DEFAULT 0,
    finalized INTEGER NOT NULL DEFAULT 0,
    correct INTEGER NOT NULL DEFAULT 0,
    incorrect INTEGER NOT NULL DEFAULT 0,
    hint_count INTEGER NOT NULL DEFAULT 0,
    time_total_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, day_key)
);

CREATE TABLE IF NOT EXISTS daily_subjects (
    user_id TEXT NOT NULL,
    day_key TEXT NOT NULL,
    subject TEXT NOT NULL,
    attempted INTEGER NOT NULL DEFAULT 0,
    correct INTEGER NOT NULL DEFAULT 0,
    time_total_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, day_key, subject)
);

CREATE TABLE IF NOT EXISTS daily_topics (
    user_id TEXT NOT NULL,
    day_key TEXT NOT NULL,
    topic TEXT NOT NULL,
    attempted INTEGER NOT NULL DEFAULT 0,
    correct INTEGER NOT NULL DEFAULT 0,
    time_total_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, day_key, topic)
);

CREATE TABLE IF NOT EXISTS topic_mastery (
    user_id TEXT NOT NULL,
    topic TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    mastery REAL NOT NULL DEFAULT 0,
    last_activity TEXT NOT NULL,
    PRIMARY KEY (user_id, topic)
);

CREATE TABLE IF NOT EXISTS mastery_snapshots (
    user_id TEXT NOT NULL,
    topic TEXT NOT NULL,
    day_key TEXT NOT NULL,
    mastery REAL NOT NULL,
    PRIMARY KEY (user_id, topic, day_key)
);

CREATE TABLE IF NOT EXISTS weak_rubrics (
    question_id TEXT NOT NULL,
    answer_hash TEXT NOT NULL,
    result TEXT NOT NULL,
    stored_at TEXT NOT NULL,
    PRIMARY KEY (question_id, answer_hash)
);

CREATE TABLE IF NOT EXISTS grading_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grading_history_attempt
    ON grading_history (attempt_id);

CREATE TABLE IF NOT EXISTS llm_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    purpose TEXT NOT NULL,
    input_tokens INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    latency_ms INTEGER NOT NULL,
    success INTEGER NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
`

// Store wraps the SQLite connection. One Store satisfies the
// aggregation sink, the mastery store, the rubric cache, the question
// resolver, and the LLM request log.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn, applies pragmas, and
// creates the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for concurrent server use.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database location, creating the
// parent directory if needed.
func DefaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	appDir := filepath.Join(dir, "brainspark")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Join(appDir, "engine.db"), nil
}
