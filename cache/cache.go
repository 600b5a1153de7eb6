// Package cache keeps check results keyed by a digest of the script and
// the options it was checked with. Results live in an LRU map with a TTL
// and, when a path is configured, in a sqlite table that survives
// restarts.
package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/migadu/sievelint/logger"
	"github.com/migadu/sievelint/pkg/metrics"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

type entry struct {
	data      []byte
	createdAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	accessOrder []string // least recently used first
	maxEntries  int
	ttl         time.Duration
	db          *sql.DB
	now         func() time.Time
}

// New returns a cache holding at most maxEntries results in memory. A
// non-empty path also opens (or creates) a sqlite database there.
func New(maxEntries int, ttl time.Duration, path string) (*Cache, error) {
	c := &Cache{
		entries:     make(map[string]*entry),
		accessOrder: make([]string, 0, maxEntries),
		maxEntries:  maxEntries,
		ttl:         ttl,
		now:         time.Now,
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return c, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache DB: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		logger.Warn("Cache: failed to set WAL journal mode", "path", path, "error", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS results (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache DB ping failed: %w", err)
	}

	c.db = db
	return c, nil
}

// Key digests parts into a cache key. Each part is length-prefixed so
// that ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := blake3.New(32, nil)
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) expired(createdAt time.Time) bool {
	return c.ttl > 0 && c.now().Sub(createdAt) > c.ttl
}

// Get returns the data stored under key, looking at the database when the
// key is not in memory.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if !c.expired(e.createdAt) {
			c.updateAccessOrder(key)
			metrics.ObserveCacheLookup(true)
			return e.data, true
		}
		c.remove(key)
	}

	data, createdAt, err := c.load(key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("Cache: lookup failed", "key", key, "error", err)
		}
		metrics.ObserveCacheLookup(false)
		return nil, false
	}
	c.insert(key, &entry{data: data, createdAt: createdAt})
	metrics.ObserveCacheLookup(true)
	return data, true
}

// load reads key from the database. Expired rows are deleted and reported
// as sql.ErrNoRows.
func (c *Cache) load(key string) ([]byte, time.Time, error) {
	if c.db == nil {
		return nil, time.Time{}, sql.ErrNoRows
	}
	var data []byte
	var created int64
	err := c.db.QueryRow(`SELECT data, created_at FROM results WHERE key = ?`, key).Scan(&data, &created)
	if err != nil {
		return nil, time.Time{}, err
	}
	createdAt := time.Unix(0, created)
	if c.expired(createdAt) {
		if _, err := c.db.Exec(`DELETE FROM results WHERE key = ?`, key); err != nil {
			logger.Warn("Cache: failed to delete expired row", "key", key, "error", err)
		}
		return nil, time.Time{}, sql.ErrNoRows
	}
	return data, createdAt, nil
}

// Put stores data under key, evicting the least recently used entry from
// memory when full.
func (c *Cache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; exists {
		c.remove(key)
	}
	c.insert(key, &entry{data: data, createdAt: now})
	metrics.CacheOperationsTotal.WithLabelValues("put", "ok").Inc()

	if c.db == nil {
		return nil
	}
	_, err := c.db.Exec(`INSERT INTO results (key, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, data, now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (c *Cache) insert(key string, e *entry) {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = e
	c.accessOrder = append(c.accessOrder, key)
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) remove(key string) {
	delete(c.entries, key)
	c.removeFromAccessOrder(key)
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// updateAccessOrder moves the key to the end of the access order list
func (c *Cache) updateAccessOrder(key string) {
	c.removeFromAccessOrder(key)
	c.accessOrder = append(c.accessOrder, key)
}

func (c *Cache) removeFromAccessOrder(key string) {
	for i, k := range c.accessOrder {
		if k == key {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
}

func (c *Cache) evictOldest() {
	if len(c.accessOrder) == 0 {
		return
	}
	oldest := c.accessOrder[0]
	delete(c.entries, oldest)
	c.accessOrder = c.accessOrder[1:]
	metrics.CacheOperationsTotal.WithLabelValues("evict", "ok").Inc()
}

// Size returns the number of entries held in memory.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CleanExpired drops expired entries from memory and the database and
// returns how many were dropped from memory.
func (c *Cache) CleanExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	for key, e := range c.entries {
		if c.expired(e.createdAt) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.remove(key)
	}

	if c.db == nil || c.ttl <= 0 {
		return len(expired), nil
	}
	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.Exec(`DELETE FROM results WHERE created_at < ?`, cutoff)
	if err != nil {
		return len(expired), fmt.Errorf("failed to purge expired cache rows: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Debug("Cache: purged expired rows", "rows", n)
	}
	return len(expired), nil
}

// StartCleanupLoop runs CleanExpired every interval until ctx is done.
func (c *Cache) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logger.Debug("Cache: cleanup loop disabled", "interval", interval)
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.CleanExpired()
				if err != nil {
					logger.Warn("Cache: cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("Cache: dropped expired entries", "entries", n)
				}
			}
		}
	}()
}

// Close closes the cache database connection
func (c *Cache) Close() error {
	if c.db != nil {
		logger.Debug("Cache: closing database")
		return c.db.Close()
	}
	return nil
}
