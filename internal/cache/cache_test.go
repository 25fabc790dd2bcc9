package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[string](10)

	_, ok := c.Get("console.log(1)")
	assert.False(t, ok, "miss expected on empty cache")

	c.Set("console.log(1)", "result-a", time.Minute)

	got, ok := c.Get("console.log(1)")
	require.True(t, ok)
	assert.Equal(t, "result-a", got)

	// Distinct source must not share the entry.
	_, ok = c.Get("console.log(2)")
	assert.False(t, ok)
}

func TestOverwriteSameSource(t *testing.T) {
	c := New[string](10)
	c.Set("x", "first", time.Minute)
	c.Set("x", "second", time.Minute)

	got, ok := c.Get("x")
	require.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, c.Stats().Total)
}

func TestTTLExpiry(t *testing.T) {
	c := New[string](10)
	c.Set("stale", "v", 100*time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	_, ok := c.Get("stale")
	assert.False(t, ok, "expired entry must not be returned")

	s := c.Stats()
	assert.Equal(t, 0, s.Total, "expired entry should be evicted on read")
}

func TestStatsValidExcludesExpired(t *testing.T) {
	c := New[string](10)
	c.Set("short", "a", 50*time.Millisecond)
	c.Set("long", "b", time.Minute)

	time.Sleep(80 * time.Millisecond)

	s := c.Stats()
	assert.Equal(t, 2, s.Total, "lazy expiry: no sweep without a read")
	assert.Equal(t, 1, s.Valid)
}

func TestEvictionPrefersLowestHits(t *testing.T) {
	c := New[string](3)

	c.Set("a", "a", time.Minute)
	c.Set("b", "b", time.Minute)
	c.Set("c", "c", time.Minute)

	// Bump hits on everything except "b".
	c.Get("a")
	c.Get("a")
	c.Get("c")

	c.Set("d", "d", time.Minute)

	_, ok := c.Get("b")
	assert.False(t, ok, "zero-hit entry should have been evicted")

	for _, code := range []string{"a", "c", "d"} {
		_, ok := c.Get(code)
		assert.True(t, ok, "entry %q should survive", code)
	}
	assert.Equal(t, 3, c.Stats().Total)
}

func TestEvictionTieBreaksOldest(t *testing.T) {
	c := New[string](2)

	c.Set("old", "1", time.Minute)
	time.Sleep(5 * time.Millisecond)
	c.Set("new", "2", time.Minute)

	c.Set("third", "3", time.Minute)

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := New[string](10)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("code-%d", i), "v", time.Minute)
	}
	require.Equal(t, 5, c.Stats().Total)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Total)
}

func TestHitRate(t *testing.T) {
	c := New[string](10)
	c.Set("a", "a", time.Minute)
	c.Set("b", "b", time.Minute)

	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	// 4 hits across 2 valid entries.
	assert.InDelta(t, 2.0, c.Stats().HitRate, 0.001)
}

func TestKeyDistinctSources(t *testing.T) {
	assert.NotEqual(t, Key("let a = 1"), Key("let a = 2"))
	assert.Equal(t, Key("same"), Key("same"))
}
