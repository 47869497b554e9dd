package jwtx

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrReplayed means the (client, jti) pair was already presented.
	ErrReplayed = errors.New("jwtx: assertion replayed")

	// ErrReplayCacheFull is returned instead of accepting an assertion the
	// cache could not remember.
	ErrReplayCacheFull = errors.New("jwtx: replay cache full")
)

// DefaultReplayCacheSize bounds MemoryReplayCache when no size is given.
const DefaultReplayCacheSize = 100_000

// ReplayCache remembers assertion ids until they expire.
type ReplayCache interface {
	// CheckAndStore records jti for clientID until exp, returning
	// ErrReplayed if it is already present.
	CheckAndStore(ctx context.Context, clientID, jti string, exp time.Time) error
}

// MemoryReplayCache is a process-local ReplayCache. Expired entries are
// swept on every call.
type MemoryReplayCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	max     int
	now     func() time.Time
}

// NewMemoryReplayCache returns a cache holding at most maxEntries live ids.
func NewMemoryReplayCache(maxEntries int) *MemoryReplayCache {
	if maxEntries <= 0 {
		maxEntries = DefaultReplayCacheSize
	}
	return &MemoryReplayCache{
		entries: make(map[string]time.Time),
		max:     maxEntries,
		now:     time.Now,
	}
}

// WithClock makes the cache judge expiry by now instead of the wall clock.
// It should match the clock of the verifier feeding it.
func (c *MemoryReplayCache) WithClock(now func() time.Time) *MemoryReplayCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
	return c
}

// CheckAndStore implements ReplayCache.
func (c *MemoryReplayCache) CheckAndStore(_ context.Context, clientID, jti string, exp time.Time) error {
	key := clientID + "\x00" + jti

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, until := range c.entries {
		if !now.Before(until) {
			delete(c.entries, k)
		}
	}

	if _, ok := c.entries[key]; ok {
		return ErrReplayed
	}
	if len(c.entries) >= c.max {
		return ErrReplayCacheFull
	}
	c.entries[key] = exp
	return nil
}

// Len reports the number of live entries.
func (c *MemoryReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
