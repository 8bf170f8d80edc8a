// Package cache implements a keyed, TTL-bounded result cache with a
// pluggable eviction policy and single-flight coalescing of concurrent
// misses on the same key.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Policy selects which entry is evicted when the cache is over capacity.
type Policy int

const (
	// LRU evicts the least recently accessed entry.
	LRU Policy = iota
	// LFU evicts the least frequently accessed entry.
	LFU
	// FIFO evicts the oldest-inserted entry regardless of access pattern.
	FIFO
	// TTLOnly never evicts for capacity; entries leave only by expiry or
	// explicit removal. Capacity is advisory (Capacity just reports it).
	TTLOnly
)

// Stats is a snapshot of the cache's cumulative counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no
// lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	freq      uint64
	elem      *list.Element // used by LRU/FIFO ordering
}

// Cache is a generic, thread-safe TTL-bounded cache over string keys.
type Cache[V any] struct {
	mu       sync.RWMutex
	items    map[string]*entry[V]
	order    *list.List // front = most-recently-used / most-recently-inserted
	policy   Policy
	capacity int
	ttl      time.Duration

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	group singleflight.Group

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	stopSweep chan struct{}
}

// New creates a cache bounded to capacity entries with a default TTL and
// the given eviction policy. capacity <= 0 means unbounded.
func New[V any](capacity int, ttl time.Duration, policy Policy) *Cache[V] {
	return &Cache[V]{
		items:    make(map[string]*entry[V]),
		order:    list.New(),
		policy:   policy,
		capacity: capacity,
		ttl:      ttl,
		inflight: make(map[string]struct{}),
	}
}

// StartSweeping launches a background goroutine that purges expired
// entries every interval, until Close is called. Single-flight coalescing
// and lazy expiry on Get mean this is an optimization, not a correctness
// requirement.
func (c *Cache[V]) StartSweeping(interval time.Duration) {
	c.stopSweep = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanupExpired()
			case <-c.stopSweep:
				return
			}
		}
	}()
}

// Close stops the background sweep goroutine, if one was started.
func (c *Cache[V]) Close() {
	if c.stopSweep != nil {
		close(c.stopSweep)
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	c.mu.Lock()
	e, ok = c.items[key]
	if !ok || c.expired(e) {
		if ok {
			c.removeLocked(key)
			atomic.AddUint64(&c.expirations, 1)
		}
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}
	e.freq++
	if c.policy == LRU && e.elem != nil {
		c.order.MoveToFront(e.elem)
	}
	value := e.value
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return value, true
}

// Set inserts or overwrites key. If key is new and the cache is already at
// capacity, one existing entry is evicted per the configured policy before
// the new one is added.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.value = value
		existing.expiresAt = c.expiryFor()
		if c.policy == LRU && existing.elem != nil {
			c.order.MoveToFront(existing.elem)
		}
		return
	}

	if c.policy != TTLOnly && c.capacity > 0 && len(c.items) >= c.capacity {
		c.evictOneLocked()
	}

	e := &entry[V]{key: key, value: value, expiresAt: c.expiryFor()}
	if c.policy == LRU || c.policy == FIFO {
		e.elem = c.order.PushFront(key)
	}
	c.items[key] = e
}

func (c *Cache[V]) expiryFor() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// evictOneLocked removes a single entry per the configured policy. Caller
// must hold c.mu.
func (c *Cache[V]) evictOneLocked() {
	var victimKey string

	switch c.policy {
	case LRU, FIFO:
		back := c.order.Back()
		if back == nil {
			return
		}
		victimKey = back.Value.(string)
	case LFU:
		var minFreq uint64 = ^uint64(0)
		for k, e := range c.items {
			if e.freq < minFreq {
				minFreq = e.freq
				victimKey = k
			}
		}
		if victimKey == "" {
			return
		}
	default:
		return
	}

	c.removeLocked(victimKey)
	atomic.AddUint64(&c.evictions, 1)
}

// Remove deletes key unconditionally, reporting whether it was present.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

func (c *Cache[V]) removeLocked(key string) {
	e, ok := c.items[key]
	if !ok {
		return
	}
	if e.elem != nil {
		c.order.Remove(e.elem)
	}
	delete(c.items, key)
}

// Contains reports whether key is present, without affecting LRU order or
// treating an already-expired-but-not-yet-swept entry as present. It does
// not remove expired entries, unlike Get.
func (c *Cache[V]) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	return ok && !c.expired(e)
}

// Size returns the current number of entries, including any not-yet-swept
// expired ones.
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Capacity returns the configured capacity (0 means unbounded).
func (c *Cache[V]) Capacity() int { return c.capacity }

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V])
	c.order = list.New()
}

// CleanupExpired removes every currently-expired entry and returns how
// many were purged. Candidates are collected before removal so the map
// isn't mutated while being ranged over.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiredKeys []string
	for k, e := range c.items {
		if c.expired(e) {
			expiredKeys = append(expiredKeys, k)
		}
	}
	for _, k := range expiredKeys {
		c.removeLocked(k)
	}
	atomic.AddUint64(&c.expirations, uint64(len(expiredKeys)))
	return len(expiredKeys)
}

// Predicate decides whether a key/value pair should be invalidated.
type Predicate[V any] func(key string, value V) bool

// InvalidateMatching removes every entry for which predicate returns true.
func (c *Cache[V]) InvalidateMatching(predicate Predicate[V]) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []string
	for k, e := range c.items {
		if predicate(k, e.value) {
			matched = append(matched, k)
		}
	}
	for _, k := range matched {
		c.removeLocked(k)
	}
	return len(matched)
}

// InvalidatePattern removes every key matching pattern, which may end in
// "*" for a prefix match; otherwise it is an exact match.
func (c *Cache[V]) InvalidatePattern(pattern string) int {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return c.InvalidateMatching(func(key string, _ V) bool {
			return strings.HasPrefix(key, prefix)
		})
	}
	return c.InvalidateMatching(func(key string, _ V) bool { return key == pattern })
}

// Stats returns a snapshot of the cumulative hit/miss/eviction/expiration
// counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:        atomic.LoadUint64(&c.hits),
		Misses:      atomic.LoadUint64(&c.misses),
		Evictions:   atomic.LoadUint64(&c.evictions),
		Expirations: atomic.LoadUint64(&c.expirations),
	}
}

// GetOrLoad returns the cached value for key, or calls loader to compute
// it on a miss, reporting via wasCached whether this call's result came
// from the cache (a direct hit, or this call arrived while another
// goroutine's load for the same key was already in flight) rather than
// this call being the one that actually invoked loader. Concurrent misses
// for the same key are coalesced via single-flight: only the first caller
// to arrive (the "leader") invokes loader, the rest ("followers") block on
// its result. The write lock is never held across loader's execution —
// singleflight.Group owns that coordination independently of c.mu.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (V, error)) (value V, wasCached bool, err error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	c.inflightMu.Lock()
	_, alreadyInFlight := c.inflight[key]
	if !alreadyInFlight {
		c.inflight[key] = struct{}{}
	}
	c.inflightMu.Unlock()
	isLeader := !alreadyInFlight

	out, err, _ := c.group.Do(key, func() (any, error) {
		if isLeader {
			defer func() {
				c.inflightMu.Lock()
				delete(c.inflight, key)
				c.inflightMu.Unlock()
			}()
		}
		// Re-check: another goroutine may have populated the entry while
		// this one was waiting to be scheduled.
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return out.(V), !isLeader, nil
}
