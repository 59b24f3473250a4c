// Package cache provides the process-wide caches shared across requests.
//
// TTL is a bounded map with time-to-live expiry and insertion-order
// eviction. It is deliberately not an LRU: a hit does not refresh an
// entry's position. Time is read through an injected Clock so tests
// control expiry without sleeping.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Default sizing for the two caches the engine keeps.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 30 * time.Minute
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

type entry[K comparable, V any] struct {
	key      K
	value    V
	expireAt time.Time
}

// TTL is a bounded, expiring map. It is safe for concurrent use; races
// between writers are last-write-wins.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	clock    Clock
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[K]*list.Element
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewTTL creates a cache holding at most capacity entries, each living for
// ttl. Non-positive values fall back to the defaults.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *TTL[K, V] {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[K, V]{
		clock:    o.clock,
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Get returns the value for key if present and not expired. Expired
// entries are removed on access.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !c.clock.Now().Before(e.expireAt) {
		c.removeElement(el)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. Overwriting a key counts as a fresh
// insertion. When the cache is full the oldest insertion is evicted.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	for c.order.Len() >= c.capacity {
		c.removeElement(c.order.Front())
	}
	e := &entry[K, V]{key: key, value: value, expireAt: c.clock.Now().Add(c.ttl)}
	c.items[key] = c.order.PushBack(e)
}

// Evict removes key. It reports whether the key was present.
func (c *TTL[K, V]) Evict(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of stored entries, including expired ones not
// yet reclaimed.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry[K, V]).expireAt) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear empties the cache.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

func (c *TTL[K, V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}
