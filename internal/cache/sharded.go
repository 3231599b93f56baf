// Package cache provides a sharded LRU cache for values shared across
// viewers, such as placeholder thumbnails keyed by image URL.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ShardCount is the number of independently locked shards.
const ShardCount = 8

// DefaultCapacity is the per-shard capacity used when none is given.
const DefaultCapacity = 16

// Hasher selects a shard for a key.
type Hasher[K any] func(K) uint64

// StringHasher hashes a string key with FNV-1a.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Sharded is a thread-safe LRU cache split into ShardCount shards. Each
// shard evicts its own least recently used entry when full.
type Sharded[K comparable, V any] struct {
	shards   [ShardCount]shard[K, V]
	hasher   Hasher[K]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	order   list.List // front is most recently used
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a cache holding up to capacity entries per shard.
// If capacity <= 0, DefaultCapacity is used.
func New[K comparable, V any](capacity int, hasher Hasher[K]) *Sharded[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Sharded[K, V]{hasher: hasher, capacity: capacity}
	for i := range c.shards {
		c.shards[i].entries = make(map[K]*list.Element)
	}
	return c
}

func (c *Sharded[K, V]) shardFor(key K) *shard[K, V] {
	return &c.shards[c.hasher(key)%ShardCount]
}

// Get returns the value for key and marks it most recently used.
func (c *Sharded[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*entry[K, V]).value, true
}

// Set stores value for key, evicting the shard's least recently used
// entry when the shard is full.
func (c *Sharded[K, V]) Set(key K, value V) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.setLocked(s, key, value)
}

// GetOrCreate returns the cached value for key, or stores and returns
// create(). create runs under the shard lock, so concurrent callers for
// the same key build the value once.
func (c *Sharded[K, V]) GetOrCreate(key K, create func() V) V {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.order.MoveToFront(el)
		c.hits.Add(1)
		return el.Value.(*entry[K, V]).value
	}
	c.misses.Add(1)
	v := create()
	c.setLocked(s, key, v)
	return v
}

func (c *Sharded[K, V]) setLocked(s *shard[K, V], key K, value V) {
	if el, ok := s.entries[key]; ok {
		el.Value.(*entry[K, V]).value = value
		s.order.MoveToFront(el)
		return
	}
	for s.order.Len() >= c.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry[K, V]).key)
		c.evictions.Add(1)
	}
	s.entries[key] = s.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Len returns the number of entries across all shards.
func (c *Sharded[K, V]) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Capacity returns the per-shard capacity.
func (c *Sharded[K, V]) Capacity() int { return c.capacity }

// Stats returns the current counters.
func (c *Sharded[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
