package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/rangecoach/internal/logging"
)

// Cache is a small sqlite-backed JSON key-value cache with optional TTL
// per entry. SQLite handles cross-process locking; WAL mode keeps
// concurrent readers cheap.
type Cache struct {
	db  *sql.DB
	log *logging.Logger
	mu  sync.Mutex
}

// OpenCache opens (or creates) the cache database at path. Use ":memory:"
// for tests.
func OpenCache(path string, log *logging.Logger) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at REAL NOT NULL,
			expires_at REAL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache(expires_at)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache index: %w", err)
	}

	return &Cache{db: db, log: log.Sub("kv")}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetJSON loads the value at key into out. Returns false when the key is
// absent, expired, or the stored payload fails to decode (corruption reads
// as a miss).
func (c *Cache) GetJSON(key string, out any) (bool, error) {
	now := unixSeconds(time.Now())

	c.mu.Lock()
	var value string
	var expiresAt sql.NullFloat64
	err := c.db.QueryRow("SELECT value, expires_at FROM cache WHERE key=?", key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		c.mu.Unlock()
		return false, nil
	}
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	if expiresAt.Valid && expiresAt.Float64 < now {
		_, _ = c.db.Exec("DELETE FROM cache WHERE key=?", key)
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	if err := json.Unmarshal([]byte(value), out); err != nil {
		c.log.Debug().Str("key", key).Err(err).Msg("corrupt cache value treated as miss")
		return false, nil
	}
	return true, nil
}

// SetJSON stores value at key. ttl <= 0 means no expiry.
func (c *Cache) SetJSON(key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	now := unixSeconds(time.Now())
	var expiresAt any
	if ttl > 0 {
		expiresAt = now + ttl.Seconds()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO cache(key, value, created_at, expires_at) VALUES(?, ?, ?, ?)",
		key, string(payload), now, expiresAt,
	)
	return err
}

// Prune removes expired entries and, if maxEntries > 0, evicts the oldest
// entries beyond that cap.
func (c *Cache) Prune(maxEntries int) error {
	now := unixSeconds(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(
		"DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at < ?", now,
	); err != nil {
		return err
	}
	if maxEntries <= 0 {
		return nil
	}

	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&count); err != nil {
		return err
	}
	if count <= maxEntries {
		return nil
	}
	_, err := c.db.Exec(
		`DELETE FROM cache WHERE key IN
		 (SELECT key FROM cache ORDER BY created_at ASC LIMIT ?)`,
		count-maxEntries,
	)
	return err
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
