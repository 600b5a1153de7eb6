package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, maxEntries int, ttl time.Duration, path string) (*Cache, *clock) {
	t.Helper()
	c, err := New(maxEntries, ttl, path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestKey(t *testing.T) {
	k := Key("keep;", "fileinto")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("keep;", "fileinto"))
	assert.NotEqual(t, k, Key("keep;", "body"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestGetPut(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute, "")

	_, ok := c.Get("a")
	assert.False(t, ok)

	require.NoError(t, c.Put("a", []byte("one")))
	data, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), data)

	require.NoError(t, c.Put("a", []byte("two")))
	data, _ = c.Get("a")
	assert.Equal(t, []byte("two"), data)
	assert.Equal(t, 1, c.Size())
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute, "")

	require.NoError(t, c.Put("a", []byte("1")))
	require.NoError(t, c.Put("b", []byte("2")))
	_, ok := c.Get("a")
	require.True(t, ok)

	require.NoError(t, c.Put("c", []byte("3")))
	assert.Equal(t, 2, c.Size())

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTL(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute, "")

	require.NoError(t, c.Put("a", []byte("1")))
	clk.advance(30 * time.Second)
	require.NoError(t, c.Put("b", []byte("2")))

	clk.advance(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	clk.advance(time.Minute)
	n, err := c.CleanExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, c.Size())
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	c, err := New(10, time.Hour, path)
	require.NoError(t, err)
	require.NoError(t, c.Put("a", []byte(`{"valid":true}`)))
	require.NoError(t, c.Close())

	c2, _ := newTestCache(t, 10, time.Hour, path)
	c2.now = time.Now
	assert.Equal(t, 0, c2.Size())

	data, ok := c2.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"valid":true}`), data)
	assert.Equal(t, 1, c2.Size(), "a database hit is promoted to memory")
}

func TestPersistentStoreExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	c, clk := newTestCache(t, 1, time.Minute, path)

	require.NoError(t, c.Put("a", []byte("1")))
	require.NoError(t, c.Put("b", []byte("2")))

	// "a" was evicted from memory but is still in the database.
	data, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), data)

	clk.advance(2 * time.Minute)
	_, err := c.CleanExpired()
	require.NoError(t, err)

	var rows int
	require.NoError(t, c.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&rows))
	assert.Equal(t, 0, rows)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestZeroEntriesStoresNothingInMemory(t *testing.T) {
	c, _ := newTestCache(t, 0, time.Minute, "")
	require.NoError(t, c.Put("a", []byte("1")))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestCleanupLoop(t *testing.T) {
	c, err := New(10, time.Millisecond, "")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put("a", []byte("1")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartCleanupLoop(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCleanupLoopNonPositiveInterval(t *testing.T) {
	c, err := New(10, 0, "")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put("a", []byte("1")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NotPanics(t, func() {
		c.StartCleanupLoop(ctx, 0)
		c.StartCleanupLoop(ctx, -time.Minute)
	})
	assert.Equal(t, 1, c.Size())
}
