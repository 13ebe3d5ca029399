// Package cache provides a SQLite-backed cache for raw search responses.
// Ingestion issues the same handful of query templates for every topic, so
// re-researching a topic within the TTL window replays cached payloads
// instead of burning search API quota.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultTTL is how long a cached search response stays fresh.
const DefaultTTL = 24 * time.Hour

// QueryCache stores raw search payloads keyed by the literal query string.
// Implementations must be safe for concurrent use.
type QueryCache interface {
	// Get returns the cached payload for query, or ok=false when the entry
	// is missing or expired.
	Get(ctx context.Context, query string) (payload []byte, ok bool, err error)
	// Put stores payload for query with the given TTL, replacing any
	// existing entry.
	Put(ctx context.Context, query string, payload []byte, ttl time.Duration) error
	// SweepExpired deletes entries past their deadline and reports how many
	// were removed.
	SweepExpired(ctx context.Context) (int64, error)
	// Close releases any resources held by the cache.
	Close() error
}

// SQLiteCache is a QueryCache backed by a local SQLite database.
type SQLiteCache struct {
	db *sql.DB
	// now is swappable in tests to exercise expiry.
	now func() time.Time
}

// DefaultDBPath returns the default path for the search cache database.
// It resolves to ~/.curio/cache.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cache: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".curio")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cache: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "cache.db"), nil
}

// Open opens (or creates) a SQLiteCache at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteCache, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *SQLiteCache) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS search_cache (
    query       TEXT    PRIMARY KEY,
    payload     BLOB    NOT NULL,
    expires_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires
    ON search_cache (expires_at);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// Get returns the cached payload for query. Expired entries are treated as
// misses; they are left in place for SweepExpired to remove.
func (c *SQLiteCache) Get(ctx context.Context, query string) ([]byte, bool, error) {
	const q = `SELECT payload, expires_at FROM search_cache WHERE query = ?`
	var payload []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, q, query).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	if c.now().Unix() >= expiresAt {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores payload for query, replacing any existing entry. A non-positive
// ttl falls back to DefaultTTL.
func (c *SQLiteCache) Put(ctx context.Context, query string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	const q = `
INSERT INTO search_cache (query, payload, expires_at) VALUES (?, ?, ?)
ON CONFLICT(query) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`
	expiresAt := c.now().Add(ttl).Unix()
	if _, err := c.db.ExecContext(ctx, q, query, payload, expiresAt); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// SweepExpired deletes entries past their deadline.
func (c *SQLiteCache) SweepExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM search_cache WHERE expires_at <= ?`
	res, err := c.db.ExecContext(ctx, q, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: sweep rows affected: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (c *SQLiteCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}
