package domain

import (
	"sync"
	"time"
)

// CachedBook pairs a deep snapshot with the wall time it was stored, so
// freshness is read together with the value instead of being recomputed
// against a separately-read clock.
type CachedBook struct {
	Snapshot *BookSnapshot
	StoredAt time.Time
}

// SnapshotCache is the last-known-good store consulted by the fallback
// cascade. It is the only state shared between the live path (writer) and
// the supervisor's fallback path (reader), hence the RWMutex.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedBook
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]*CachedBook),
	}
}

func (c *SnapshotCache) Put(venue Venue, symbol *MarketSymbol, snapshot *BookSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(venue, symbol)] = &CachedBook{
		Snapshot: snapshot,
		StoredAt: time.Now(),
	}
}

func (c *SnapshotCache) Get(venue Venue, symbol *MarketSymbol) (*CachedBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(venue, symbol)]
	return entry, ok
}

// Age returns how long ago the entry was stored, or false when absent.
func (c *SnapshotCache) Age(venue Venue, symbol *MarketSymbol) (time.Duration, bool) {
	entry, ok := c.Get(venue, symbol)
	if !ok {
		return 0, false
	}
	return time.Since(entry.StoredAt), true
}

func cacheKey(venue Venue, symbol *MarketSymbol) string {
	return string(venue) + "/" + symbol.String()
}
