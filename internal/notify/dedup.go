package notify

import (
	"sync"
	"time"
)

// DedupCache is a time-bounded set of payment ids used to suppress duplicate
// payment-succeeded notifications. Entries expire after a fixed window and
// are evicted lazily on the next insert, so no background timer is needed.
// The cache lives only for the duration of a connected session.
type DedupCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time // payment id -> expiry

	// now is a clock seam for tests.
	now func() time.Time
}

// NewDedupCache returns a cache suppressing repeats within window.
func NewDedupCache(window time.Duration) *DedupCache {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &DedupCache{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Insert records the id and reports whether it was absent (i.e. whether the
// caller should emit the notification). Expired entries encountered during
// the call are evicted.
func (c *DedupCache) Insert(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.entries {
		if !exp.After(now) {
			delete(c.entries, k)
		}
	}

	if exp, ok := c.entries[id]; ok && exp.After(now) {
		return false
	}
	c.entries[id] = now.Add(c.window)
	return true
}

// Len returns the number of live entries (expired ones may still be counted
// until the next Insert).
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
