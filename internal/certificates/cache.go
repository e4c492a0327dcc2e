package certificates

import (
	"sync"
	"time"
)

// Cache keeps recently derived certificates keyed by project id. Records
// are immutable, so a cached certificate only goes stale if the project's
// display fields change.
type Cache struct {
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once

	hits   int64
	misses int64
}

type cacheEntry struct {
	value      Certificate
	expiration time.Time
}

// CacheStats reports cache usage
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates a cache whose entries live for ttl
func NewCache(ttl time.Duration) *Cache {
	cache := &Cache{
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a certificate from the cache
func (c *Cache) Get(projectID string) (Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[projectID]
	if !ok || time.Now().After(entry.expiration) {
		c.misses++
		return Certificate{}, false
	}
	c.hits++
	return entry.value, true
}

// Set stores a certificate in the cache
func (c *Cache) Set(projectID string, cert Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[projectID] = &cacheEntry{
		value:      cert,
		expiration: time.Now().Add(c.ttl),
	}
}

// GetOrSet returns the cached certificate or computes and stores it
func (c *Cache) GetOrSet(projectID string, compute func() (Certificate, error)) (Certificate, error) {
	if cert, ok := c.Get(projectID); ok {
		return cert, nil
	}

	cert, err := compute()
	if err != nil {
		return Certificate{}, err
	}

	c.Set(projectID, cert)
	return cert, nil
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:    len(c.data),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// Stop stops the cleanup goroutine
func (c *Cache) Stop() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

func (c *Cache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}
