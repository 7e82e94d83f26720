package resolver

import (
	"sync"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
)

// DefaultCacheTTL applies when the configured TTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds the single most recent location result for a short TTL so
// repeated lookups inside one polling interval skip the network. It is safe
// for concurrent use; a forced refresh may race a scheduled cycle and the
// last writer wins.
type Cache struct {
	mu       sync.Mutex
	entry    domain.LocationResult
	storedAt time.Time
	occupied bool
	ttl      time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl}
}

// Get returns the cached result if it is younger than the TTL.
func (c *Cache) Get() (domain.LocationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.occupied {
		return domain.LocationResult{}, false
	}
	if domain.Clock().Now().Sub(c.storedAt) >= c.ttl {
		return domain.LocationResult{}, false
	}
	return c.entry, true
}

// Put stores the result with the current timestamp.
func (c *Cache) Put(r domain.LocationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = r
	c.storedAt = domain.Clock().Now()
	c.occupied = true
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = domain.LocationResult{}
	c.occupied = false
}
