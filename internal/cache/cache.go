// Package cache provides a small bounded TTL memo cache. It replaces
// module-level dictionary caches with an injectable value so concurrent
// sessions and tests do not share state.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a mutex-guarded TTL cache with an entry bound. Eviction is
// oldest-insertion-first once the bound is reached; expired entries are
// dropped lazily on access.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List
	now        func() time.Time
}

type entry struct {
	key      string
	value    any
	storedAt time.Time
}

// New constructs a cache. ttl <= 0 means entries never expire; maxEntries <= 0
// means unbounded (not recommended for long-running processes).
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the cached value for key when present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.removeLocked(elem)
		return nil, false
	}
	return e.value, true
}

// Put stores value under key, evicting the oldest entry when full.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	for c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
	elem := c.order.PushBack(&entry{key: key, value: value, storedAt: c.now()})
	c.entries[key] = elem
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(elem)
}

// WithClock overrides the time source. Test helper.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}
