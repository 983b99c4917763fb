package store

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rangecoach/internal/logging"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"), logging.New(io.Discard, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)

	type payload struct {
		Name  string   `json:"name"`
		Score float64  `json:"score"`
		Tags  []string `json:"tags"`
	}
	in := payload{Name: "probe", Score: 0.75, Tags: []string{"a", "b"}}
	require.NoError(t, c.SetJSON("k1", in, 0))

	var out payload
	found, err := c.GetJSON("k1", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestCacheMissAndOverwrite(t *testing.T) {
	c := newTestCache(t)

	var out string
	found, err := c.GetJSON("absent", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON("k", "first", 0))
	require.NoError(t, c.SetJSON("k", "second", 0))
	found, err = c.GetJSON("k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", out)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SetJSON("short", "value", 10*time.Millisecond))
	require.NoError(t, c.SetJSON("long", "value", time.Hour))

	time.Sleep(30 * time.Millisecond)

	var out string
	found, err := c.GetJSON("short", &out)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.GetJSON("long", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCachePrune(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.SetJSON("expired", "v", 10*time.Millisecond))
	for i := 0; i < 6; i++ {
		require.NoError(t, c.SetJSON(fmt.Sprintf("live-%d", i), i, 0))
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(15 * time.Millisecond)

	require.NoError(t, c.Prune(3))

	var out int
	// Oldest live entries evicted, newest retained.
	for i := 0; i < 3; i++ {
		found, err := c.GetJSON(fmt.Sprintf("live-%d", i), &out)
		require.NoError(t, err)
		assert.False(t, found, "live-%d should be evicted", i)
	}
	for i := 3; i < 6; i++ {
		found, err := c.GetJSON(fmt.Sprintf("live-%d", i), &out)
		require.NoError(t, err)
		assert.True(t, found, "live-%d should survive", i)
	}
}

func TestMemoryKV(t *testing.T) {
	m := NewMemoryKV()

	require.NoError(t, m.SetJSON("a", []int{1, 2, 3}, 0))
	var out []int
	found, err := m.GetJSON("a", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1, 2, 3}, out)

	require.NoError(t, m.SetJSON("short", "v", time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	var s string
	found, err = m.GetJSON("short", &s)
	require.NoError(t, err)
	assert.False(t, found)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.SetJSON(fmt.Sprintf("k%d", i), i, 0))
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, m.Prune(2))
	assert.Equal(t, 2, m.Len())
	var v int
	found, err = m.GetJSON("k4", &v)
	require.NoError(t, err)
	assert.True(t, found)
}
