package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *testClock) {
	clk := &testClock{t: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
	return NewLRUCache[string](size, ttl).WithClock(clk.now), clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "1")
	c.Set("a", "2")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", "3")

	clk.t = clk.t.Add(45 * time.Second)
	assert.Equal(t, 1, c.CleanExpired())

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestLRUCache_ZeroTTLDisablesCaching(t *testing.T) {
	c, _ := newTestCache(4, 0)
	c.Set("a", "1")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("owner-1:monthly:2025-09", "x")
	c.Set("owner-1:dashboard", "y")
	c.Set("owner-10:dashboard", "z")
	c.Set("owner-2:dashboard", "w")

	assert.Equal(t, 2, c.DeletePrefix("owner-1:"))
	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("owner-10:dashboard")
	assert.True(t, ok)

	c.Delete("owner-2:dashboard")
	assert.Equal(t, 1, c.Size())
}

func TestManager_CleanNowAndStop(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("a", "1")
	clk.t = clk.t.Add(2 * time.Minute)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
