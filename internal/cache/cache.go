package cache

import (
	"sync"
	"time"
)

// ExpiringCache is a TTL cache used to de-duplicate inventory writes.
// Entries expire after the configured TTL and are swept by a janitor
// goroutine on the cleanup interval.
type ExpiringCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	items     map[string]cacheItem
	done      chan struct{}
	closeOnce sync.Once
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

func NewExpiringCache(ttl, cleanupInterval time.Duration) *ExpiringCache {
	c := &ExpiringCache{
		ttl:   ttl,
		items: make(map[string]cacheItem),
		done:  make(chan struct{}),
	}
	go c.janitor(cleanupInterval)
	return c
}

func (c *ExpiringCache) Get(key string) (any, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

func (c *ExpiringCache) Set(key string, value any) {
	c.mu.Lock()
	c.items[key] = cacheItem{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *ExpiringCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *ExpiringCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
