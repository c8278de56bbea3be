// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger records one row per API call in a local SQLite database:
// which model answered, how long it took, how much text went each way and
// whether it failed. Prompts and replies themselves are not stored.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned when the store has been closed.
var ErrClosed = errors.New("ledger is closed")

// =============================================================================
// TYPES
// =============================================================================

// Exchange is one recorded API call.
type Exchange struct {
	ID          string
	SessionID   string
	Model       string
	Streamed    bool
	PromptChars int
	ReplyChars  int
	Duration    time.Duration
	Error       string // empty on success
	CreatedAt   time.Time
}

// Succeeded reports whether the call completed without error.
func (e Exchange) Succeeded() bool {
	return e.Error == ""
}

// Summary aggregates exchanges.
type Summary struct {
	Calls        int
	Failures     int
	PromptChars  int
	ReplyChars   int
	MeanDuration time.Duration
	FirstAt      time.Time
	LastAt       time.Time
}

// =============================================================================
// STORE
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	model        TEXT NOT NULL,
	streamed     INTEGER NOT NULL,
	prompt_chars INTEGER NOT NULL,
	reply_chars  INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
`

// Store is a SQLite-backed exchange ledger. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// NewSessionID returns a fresh identifier for grouping exchanges.
func NewSessionID() string {
	return uuid.New().String()
}

// Record inserts e, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e Exchange) error {
	if s.db == nil {
		return ErrClosed
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, session_id, model, streamed, prompt_chars, reply_chars, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Model, boolToInt(e.Streamed), e.PromptChars, e.ReplyChars,
		e.Duration.Milliseconds(), e.Error, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, model, streamed, prompt_chars, reply_chars, duration_ms, error, created_at
		FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var streamed int
		var durationMs, createdMs int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Model, &streamed, &e.PromptChars, &e.ReplyChars, &durationMs, &e.Error, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		e.Streamed = streamed != 0
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates all exchanges, or only those of sessionID when it is
// not empty.
func (s *Store) Summary(ctx context.Context, sessionID string) (Summary, error) {
	if s.db == nil {
		return Summary{}, ErrClosed
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(prompt_chars), 0),
		       COALESCE(SUM(reply_chars), 0),
		       COALESCE(AVG(duration_ms), 0),
		       COALESCE(MIN(created_at), 0),
		       COALESCE(MAX(created_at), 0)
		FROM exchanges`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	var sum Summary
	var meanMs float64
	var firstMs, lastMs int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.Calls, &sum.Failures, &sum.PromptChars, &sum.ReplyChars, &meanMs, &firstMs, &lastMs,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize exchanges: %w", err)
	}
	sum.MeanDuration = time.Duration(meanMs * float64(time.Millisecond))
	if sum.Calls > 0 {
		sum.FirstAt = time.UnixMilli(firstMs)
		sum.LastAt = time.UnixMilli(lastMs)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
