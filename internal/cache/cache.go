package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jsforge/backend/internal/shared/id"
)

// Entry is a stored result plus its bookkeeping metadata.
type Entry[V any] struct {
	ID        id.EntryID
	Hash      uint64
	Value     V
	Timestamp time.Time
	Hits      int
	TTL       time.Duration
}

// Stats describes the cache state at a point in time. Valid is recomputed
// against TTLs at call time, not tracked incrementally.
type Stats struct {
	Total    int     `json:"total"`
	Valid    int     `json:"valid"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// Cache maps source hashes to previously computed values.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[uint64]*Entry[V]
	capacity int
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache[V]{
		entries:  make(map[uint64]*Entry[V]),
		capacity: capacity,
	}
}

// Key computes the content hash used to address an entry.
func Key(code string) uint64 {
	return xxhash.Sum64String(code)
}

// Get returns the stored value for code if a fresh entry exists.
// Expired entries are evicted on the spot and reported as misses.
// A hit increments the entry's hit counter.
func (c *Cache[V]) Get(code string) (V, bool) {
	var zero V
	key := Key(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if time.Since(entry.Timestamp) > entry.TTL {
		delete(c.entries, key)
		return zero, false
	}

	entry.Hits++
	return entry.Value, true
}

// Set stores a value for code with the given TTL, evicting the
// least-hit entry (oldest on ties) if the cache is at capacity.
// An existing entry for the same source is overwritten in place.
func (c *Cache[V]) Set(code string, value V, ttl time.Duration) {
	key := Key(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	c.entries[key] = &Entry[V]{
		ID:        id.NewEntryID(),
		Hash:      key,
		Value:     value,
		Timestamp: time.Now(),
		TTL:       ttl,
	}
}

// evictLocked removes the entry with the lowest hit count, breaking ties
// by oldest insertion timestamp. Caller must hold c.mu.
func (c *Cache[V]) evictLocked() {
	var victim *Entry[V]
	for _, entry := range c.entries {
		if victim == nil ||
			entry.Hits < victim.Hits ||
			(entry.Hits == victim.Hits && entry.Timestamp.Before(victim.Timestamp)) {
			victim = entry
		}
	}
	if victim != nil {
		delete(c.entries, victim.Hash)
	}
}

// Clear drops all entries unconditionally.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*Entry[V])
}

// Resize changes the maximum entry count. The new bound is applied on the
// next Set; existing entries are not evicted eagerly.
func (c *Cache[V]) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = capacity
}

// Stats returns a point-in-time view of the cache. HitRate is the average
// hit count across currently valid entries.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Total:    len(c.entries),
		Size:     len(c.entries),
		Capacity: c.capacity,
	}

	hits := 0
	for _, entry := range c.entries {
		if time.Since(entry.Timestamp) <= entry.TTL {
			s.Valid++
			hits += entry.Hits
		}
	}
	if s.Valid > 0 {
		s.HitRate = float64(hits) / float64(s.Valid)
	}
	return s
}
