package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seisgate/seisgate/pkg/types"
)

// LRUCache implements a thread-safe bounded LRU cache with per-entry TTL.
// An entry is never served past its TTL; capacity pressure evicts the least
// recently used entry regardless of remaining TTL.
type LRUCache struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	items     map[string]*cacheItem
	evictList *list.List

	group  singleflight.Group
	stopCh chan struct{}
	once   sync.Once

	// Statistics
	stats types.CacheStats
}

// Config represents cache configuration for one tier
type Config struct {
	MaxEntries      int           `yaml:"max_entries"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// cacheItem represents an item in the cache
type cacheItem struct {
	key        string
	value      interface{}
	insertedAt time.Time
	ttl        time.Duration
	element    *list.Element
}

// cacheEntry represents the value stored in the list element
type cacheEntry struct {
	key string
}

// NewLRUCache creates a new LRU cache
func NewLRUCache(config *Config) *LRUCache {
	if config == nil {
		config = &Config{
			MaxEntries:      512,
			TTL:             time.Minute,
			CleanupInterval: time.Minute,
		}
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 512
	}

	cache := &LRUCache{
		capacity:  config.MaxEntries,
		ttl:       config.TTL,
		items:     make(map[string]*cacheItem),
		evictList: list.New(),
		stopCh:    make(chan struct{}),
		stats: types.CacheStats{
			Capacity: config.MaxEntries,
		},
	}

	if config.CleanupInterval > 0 {
		go cache.cleanupExpired(config.CleanupInterval)
	}

	return cache
}

// Get retrieves a value from the cache, recording one hit or one miss.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.lookup(key)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return value, ok
}

// lookup checks and touches an entry without recording a hit or miss, so
// internal re-checks do not inflate the counters. Expired entries are removed
// here. Callers must hold c.mu.
func (c *LRUCache) lookup(key string) (interface{}, bool) {
	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if c.isExpired(item, time.Now()) {
		c.removeItem(key)
		c.stats.Expired++
		return nil, false
	}

	c.evictList.MoveToFront(item.element)
	return item.value, true
}

// peek is lookup under the lock.
func (c *LRUCache) peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

// Put stores a value in the cache under the tier's default TTL
func (c *LRUCache) Put(key string, value interface{}) {
	c.PutWithTTL(key, value, c.ttl)
}

// PutWithTTL stores a value with an explicit TTL
func (c *LRUCache) PutWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.value = value
		item.insertedAt = time.Now()
		item.ttl = ttl
		c.evictList.MoveToFront(item.element)
		return
	}

	item := &cacheItem{
		key:        key,
		value:      value,
		insertedAt: time.Now(),
		ttl:        ttl,
	}
	item.element = c.evictList.PushFront(&cacheEntry{key: key})
	c.items[key] = item

	c.evictIfNeeded()
}

// GetOrCompute returns the cached value for key, computing and caching it on
// a miss. Concurrent misses on the same key are collapsed into a single
// compute call; the other callers wait for its result. Compute errors are
// not cached. Each call records exactly one hit or one miss.
func (c *LRUCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another waiter may have populated the entry while we queued; the
		// outer Get already counted this call's miss.
		if value, ok := c.peek(key); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, value)
		return value, nil
	})
	return value, err
}

// Delete removes an item from the cache
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeItem(key)
}

// Len returns the number of live entries
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *LRUCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if c.capacity > 0 {
		stats.Utilization = float64(len(c.items)) / float64(c.capacity)
	}
	return stats
}

// Clear removes all items from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheItem)
	c.evictList.Init()
}

// Close stops the background cleanup goroutine
func (c *LRUCache) Close() {
	c.once.Do(func() {
		close(c.stopCh)
	})
}

// Helper methods

func (c *LRUCache) isExpired(item *cacheItem, now time.Time) bool {
	if item.ttl <= 0 {
		return false
	}
	return now.Sub(item.insertedAt) > item.ttl
}

func (c *LRUCache) removeItem(key string) {
	item, exists := c.items[key]
	if !exists {
		return
	}

	c.evictList.Remove(item.element)
	delete(c.items, key)
}

func (c *LRUCache) evictIfNeeded() {
	for len(c.items) > c.capacity && c.evictList.Len() > 0 {
		element := c.evictList.Back()
		if element == nil {
			return
		}
		entry := element.Value.(*cacheEntry)
		c.removeItem(entry.key)
		c.stats.Evictions++
	}
}

func (c *LRUCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			var expired []string
			for key, item := range c.items {
				if c.isExpired(item, now) {
					expired = append(expired, key)
				}
			}
			for _, key := range expired {
				c.removeItem(key)
				c.stats.Expired++
			}
			c.mu.Unlock()
		}
	}
}
