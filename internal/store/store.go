// Package store provides a SQLite-backed archive of conversation history,
// keyed by topic id. The in-memory session is authoritative within a run;
// this archive carries exchanges across restarts so `curio chat` can pick up
// where a previous session left off.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/curio-ai/curio-go/internal/session"
)

// HistoryStore persists and retrieves conversation entries keyed by topic id.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append persists a single entry for the given topic.
	Append(ctx context.Context, topicID string, e session.Entry) error
	// Recent returns the most recent n entries for the topic, ordered
	// oldest-first so they can seed a fresh session directly.
	// If fewer than n entries exist, all are returned.
	Recent(ctx context.Context, topicID string, n int) ([]session.Entry, error)
	// Clear removes all entries for the topic.
	Clear(ctx context.Context, topicID string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.curio/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".curio")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    topic        TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_history_topic_created
    ON history (topic, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single entry for the given topic.
func (s *SQLiteStore) Append(ctx context.Context, topicID string, e session.Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `INSERT INTO history (topic, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, topicID, string(e.Role), e.Content, createdAt.Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries for the topic, ordered
// oldest-first. Uses a subquery to select the tail then re-order for seeding.
func (s *SQLiteStore) Recent(ctx context.Context, topicID string, n int) ([]session.Entry, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   history
    WHERE  topic = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, topicID, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []session.Entry
	for rows.Next() {
		var e session.Entry
		var ts int64
		var role string
		if err := rows.Scan(&role, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.Role = session.Role(role)
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Clear removes all entries for the topic.
func (s *SQLiteStore) Clear(ctx context.Context, topicID string) error {
	const q = `DELETE FROM history WHERE topic = ?`
	if _, err := s.db.ExecContext(ctx, q, topicID); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
