// Package store provides the local SQLite snapshot cache. It persists the
// last good group catalog and the last fetched feed per group so the
// client can show a last-known view before the first network load (or
// offline entirely). Writes are best effort and never block the engine.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Ncn914491/groupsync/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	group_id     TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	is_member    INTEGER NOT NULL DEFAULT 0,
	member_count INTEGER NOT NULL DEFAULT 0,
	member_ids   TEXT,
	position     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feed (
	group_id     TEXT NOT NULL,
	message_id   TEXT NOT NULL,
	content      TEXT NOT NULL,
	author_id    TEXT NOT NULL,
	author_name  TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	position     INTEGER NOT NULL,
	PRIMARY KEY (group_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_feed_group ON feed(group_id, position);
`

// Store is the snapshot cache handle.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Options configures Open.
type Options struct {
	// BusyTimeoutMs is how long to wait for a locked database.
	// Default: 5000
	BusyTimeoutMs int
}

// Open opens (creating if needed) the snapshot cache at path.
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path required")
	}

	busyTimeout := opts.BusyTimeoutMs
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// The engine writes from one goroutine at a time; a single
	// connection keeps modernc's file locking simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logging.Component("snapshot-cache"),
	}, nil
}

// Close closes the cache.
func (s *Store) Close() error {
	return s.db.Close()
}

// Transaction runs fn inside a transaction, retrying on busy errors.
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return withRetry(ctx, defaultRetryAttempts, defaultRetryBackoff, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
