// Package viewcache caches fetched list views (training jobs, models) so the
// client does not refetch on every render. Entries are evicted by the
// notification dispatcher when a completion event invalidates them.
package viewcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultTTL      = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

// Cache stores list views keyed by view name.
type Cache struct {
	c *gocache.Cache
}

// New creates a cache with the default TTL.
func New() *Cache {
	return &Cache{
		c: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the cached value for a view, if present and unexpired.
func (c *Cache) Get(view string) (any, bool) {
	return c.c.Get(view)
}

// Set stores a value for a view with the default TTL.
func (c *Cache) Set(view string, v any) {
	c.c.Set(view, v, gocache.DefaultExpiration)
}

// Invalidate evicts a view from the cache.
func (c *Cache) Invalidate(view string) {
	c.c.Delete(view)
}
