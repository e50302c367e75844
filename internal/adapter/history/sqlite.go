// Package history persists delivery attempts to SQLite for auditing
// and troubleshooting.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"slackline/internal/usecase/delivery"
)

// Store implements delivery.Recorder on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath and runs the
// schema migration.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			profile    TEXT NOT NULL,
			channel    TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			thread_ts  TEXT NOT NULL DEFAULT '',
			at         TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements delivery.Recorder.
func (s *Store) Record(ctx context.Context, a delivery.Attempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO deliveries (profile, channel, outcome, error_code, thread_ts, at) VALUES (?, ?, ?, ?, ?, ?)",
		a.Profile, a.Channel, a.Outcome, a.ErrorCode, a.ThreadTS, at.Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns the most recent attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]delivery.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT profile, channel, outcome, error_code, thread_ts, at FROM deliveries ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []delivery.Attempt
	for rows.Next() {
		var a delivery.Attempt
		var at string
		if err := rows.Scan(&a.Profile, &a.Channel, &a.Outcome, &a.ErrorCode, &a.ThreadTS, &at); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			a.At = t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
