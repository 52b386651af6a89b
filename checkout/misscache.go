package checkout

import (
	"fmt"
	"sync"
	"time"
)

// DefaultMissTTL is how long a not-found lookup result is remembered.
const DefaultMissTTL = 5 * time.Second

// MissCache remembers recent not-found purchase lookups so repeated checks
// for the same (item, identity) short-circuit without a network call.
// Entries expire on read; writes additionally sweep whatever has already
// expired so the map does not grow unbounded in a long-lived process.
type MissCache struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewMissCache creates a negative-lookup cache with the specified TTL.
// A zero TTL falls back to DefaultMissTTL.
func NewMissCache(ttl time.Duration) *MissCache {
	if ttl <= 0 {
		ttl = DefaultMissTTL
	}
	return &MissCache{
		expiry: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func missKey(itemID string, id Identity) string {
	return fmt.Sprintf("%s|%s|%s", itemID, id.Kind, id.Value)
}

// MissedRecently reports whether a not-found result for this key is still
// fresh. An expired entry is removed on the way out.
func (c *MissCache) MissedRecently(itemID string, id Identity) bool {
	key := missKey(itemID, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.expiry[key]
	if !ok {
		return false
	}
	if c.now().After(expiry) {
		delete(c.expiry, key)
		return false
	}
	return true
}

// MarkMissing records a not-found result for this key.
func (c *MissCache) MarkMissing(itemID string, id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expiry[missKey(itemID, id)] = c.now().Add(c.ttl)
	c.sweepExpiredLocked()
}

// Clear drops any cached negative entry for this key. Called whenever a
// lookup actually finds a record.
func (c *MissCache) Clear(itemID string, id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.expiry, missKey(itemID, id))
}

// sweepExpiredLocked removes expired entries. Must be called with lock held.
func (c *MissCache) sweepExpiredLocked() {
	now := c.now()
	for key, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.expiry, key)
		}
	}
}
