// Package cache implements the Result Cache of spec §4.6: a bounded LRU
// mapping (cube, address, structure_version, rules_version, data_version)
// to a value, invalidated implicitly whenever any version component in the
// lookup key no longer matches current state.
package cache

import (
	"container/list"
	"sync"

	"github.com/gridcube/gridcube/pkg/gridcube"
)

// Key identifies one cached evaluation.
type Key struct {
	Cube             string
	Address          string // canonical string form of the general address
	StructureVersion uint64
	RulesVersion     uint64
	DataVersion      uint64
}

type entry struct {
	key   Key
	value gridcube.Result
}

// Cache is an LRU-evicted result cache. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[Key]*list.Element

	hits, misses uint64
}

// New creates a cache with the given entry capacity. Capacity <= 0 means
// caching is effectively disabled (every lookup misses).
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    map[Key]*list.Element{},
	}
}

// Get looks up key, promoting it to most-recently-used on hit.
func (c *Cache) Get(key Key) (gridcube.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		c.misses++
		return gridcube.Result{}, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return el.Value.(*entry).value, true
}

// Put publishes a value for key, evicting the least-recently-used entry if
// over capacity. A no-op when capacity <= 0.
func (c *Cache) Put(key Key, value gridcube.Result) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*entry).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{key: key, value: value})
	c.index[key] = el
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).key)
	}
}

// InvalidateCube drops every entry for a given cube name, as an explicit
// coarse sweep. Normal invalidation (writes, structural commits, rule
// register/unregister) is implicit via version mismatch in the key and does
// not call this.
func (c *Cache) InvalidateCube(cube string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, el := range c.index {
		if k.Cube == cube {
			c.ll.Remove(el)
			delete(c.index, k)
		}
	}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
