package federation

import (
	"sync"
	"time"

	"github.com/trackmeet/core/pkg/models"
)

type cacheEntry struct {
	club      *models.ClubDetails
	expiresAt time.Time
}

// clubCache keeps successful club lookups for a TTL. Expired entries are
// dropped on read.
type clubCache struct {
	entries map[string]cacheEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

func newClubCache(ttl time.Duration, now func() time.Time) *clubCache {
	if now == nil {
		now = time.Now
	}
	return &clubCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *clubCache) Get(key string) (*models.ClubDetails, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	if c.now().After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	return entry.club, true
}

func (c *clubCache) Set(key string, club *models.ClubDetails) {
	if c.ttl <= 0 {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = cacheEntry{
		club:      club,
		expiresAt: c.now().Add(c.ttl),
	}
}
