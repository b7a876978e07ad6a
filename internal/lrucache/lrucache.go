// Package lrucache is the optional in-memory convenience cache mentioned
// in the core's scope as an external collaborator: a bounded LRU over
// Engine.Get results, not part of the core hash-map engine itself. Its
// eviction policy mirrors pagefile.Cache's write-through LRU list, applied
// here to decoded key/value pairs instead of raw pages.
package lrucache

import (
	"github.com/hammersbald/hammersbald/internal/engine"
	"github.com/hammersbald/hammersbald/internal/metrics"
)

type entry struct {
	key        string
	pref       engine.PRef
	value      []byte
	prev, next *entry
}

// Cache wraps an Engine with a bounded LRU of recently looked-up or
// inserted key/value pairs. It is invalidated wholesale after every
// successful Batch: a batch may have run recovery-sensitive mutations
// (splits rewrite spill-over chains) that are cheaper to forget than to
// track precisely, and batches are infrequent relative to Get/Put.
type Cache struct {
	engine   *engine.Engine
	capacity int
	items    map[string]*entry
	head     *entry
	tail     *entry
	metrics  *metrics.Metrics
}

// New wraps an already-open Engine with an LRU cache of the given capacity
// (entries, not bytes); capacity < 1 is treated as 1.
func New(e *engine.Engine, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{engine: e, capacity: capacity, items: make(map[string]*entry)}
}

// UseMetrics wires m's CacheHits/CacheMiss counters into Get. Passing nil
// (the default) disables instrumentation.
func (c *Cache) UseMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Get returns the payload for key, consulting the LRU cache before falling
// through to Engine.Get.
func (c *Cache) Get(key []byte) (engine.PRef, []byte, bool, error) {
	if e, ok := c.items[string(key)]; ok {
		c.moveToFront(e)
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return e.pref, e.value, true, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMiss.Inc()
	}
	pref, value, ok, err := c.engine.Get(key)
	if err != nil || !ok {
		return 0, nil, false, err
	}
	c.insert(string(key), pref, value)
	return pref, value, true, nil
}

// Put writes through to Engine.Put and updates the cache entry.
func (c *Cache) Put(key, payload []byte) (engine.PRef, error) {
	pref, err := c.engine.Put(key, payload)
	if err != nil {
		return 0, err
	}
	c.insert(string(key), pref, payload)
	return pref, nil
}

// Batch delegates to Engine.Batch and then drops every cached entry.
func (c *Cache) Batch() error {
	if err := c.engine.Batch(); err != nil {
		return err
	}
	c.items = make(map[string]*entry)
	c.head, c.tail = nil, nil
	return nil
}

func (c *Cache) insert(key string, pref engine.PRef, value []byte) {
	if e, ok := c.items[key]; ok {
		e.pref, e.value = pref, value
		c.moveToFront(e)
		return
	}
	e := &entry{key: key, pref: pref, value: value}
	c.items[key] = e
	c.pushFront(e)
	if len(c.items) > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) pushFront(e *entry) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) evictOldest() {
	if c.tail == nil {
		return
	}
	oldest := c.tail
	c.unlink(oldest)
	delete(c.items, oldest.key)
}
