// Package cache provides a small TTL cache keyed by a hash of the caller's
// raw key. Entries keep the raw key, so hash collisions read as misses.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
)

const keyPrefix = "edge:"

// SweepEvery is how many Sets pass between sweeps of expired entries.
const SweepEvery = 64

type entry[T any] struct {
	raw       string
	value     T
	expiresAt int64
}

// EdgeCache maps hashed keys to values with a per-entry TTL. Expired
// entries are dropped when read, when Purge runs, and on every
// SweepEvery-th Set.
type EdgeCache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	sets    int
	clock   clock.Clock
}

func New[T any](c clock.Clock) *EdgeCache[T] {
	return &EdgeCache[T]{
		entries: make(map[string]entry[T]),
		clock:   clock.OrReal(c),
	}
}

// Key returns the storage key for a raw key: "edge:" plus a 32-bit rolling
// hash of its runes.
func Key(raw string) string {
	var h uint32
	for _, r := range raw {
		h = (h << 5) - h + uint32(r)
	}
	return keyPrefix + strconv.FormatUint(uint64(h), 10)
}

// Get returns the value for raw unless it is missing, expired, or stored
// under a different raw key with the same hash.
func (c *EdgeCache[T]) Get(raw string) (T, bool) {
	key := Key(raw)
	now := clock.NowMillis(c.clock)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.raw != raw {
		var zero T
		return zero, false
	}
	if e.expiresAt < now {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *EdgeCache[T]) Set(raw string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	key := Key(raw)
	now := clock.NowMillis(c.clock)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{raw: raw, value: value, expiresAt: now + ttl.Milliseconds()}
	c.sets++
	if c.sets%SweepEvery == 0 {
		c.purgeLocked(now)
	}
}

// Delete drops raw's entry if present.
func (c *EdgeCache[T]) Delete(raw string) {
	key := Key(raw)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.raw == raw {
		delete(c.entries, key)
	}
}

// Purge removes every expired entry and returns how many were dropped.
func (c *EdgeCache[T]) Purge() int {
	now := clock.NowMillis(c.clock)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(now)
}

func (c *EdgeCache[T]) purgeLocked(now int64) int {
	n := 0
	for k, e := range c.entries {
		if e.expiresAt < now {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *EdgeCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
