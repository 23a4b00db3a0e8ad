// Package cache is the content-addressed NFP store shared by all worker
// tasks. Each key is computed at most once per process: concurrent readers
// of a missing key block on the single in-flight computation. Entries are
// immutable once published and optionally durable through an append-only
// log file.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/deepnest-next/gonest/internal/model"
)

// entry moves Absent -> Pending -> Ready. Pending is only observable
// inside this package; callers block on ready and see the final value.
type entry struct {
	ready chan struct{}
	poly  *model.Polygon // nil means "no fit exists", which is an answer
	err   error
}

// Stats carries the test-mode counters.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Computes uint64
}

// Cache is the in-memory NFP map with optional durable backing.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	store   *Store

	hits     atomic.Uint64
	misses   atomic.Uint64
	computes atomic.Uint64
}

// New creates an empty cache. A nil store disables durability.
func New(store *Store) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		store:   store,
	}
	if store != nil {
		for key, poly := range store.Entries() {
			e := &entry{ready: make(chan struct{}), poly: poly}
			close(e.ready)
			c.entries[key.String()] = e
		}
	}
	return c
}

// Get returns the Ready value for the key. ok is false while the key is
// Absent or Pending; Pending never leaks to callers.
func (c *Cache) Get(key Key) (*model.Polygon, bool) {
	c.mu.Lock()
	e, exists := c.entries[key.String()]
	c.mu.Unlock()
	if !exists {
		return nil, false
	}
	select {
	case <-e.ready:
	default:
		return nil, false
	}
	if e.err != nil {
		return nil, false
	}
	c.hits.Add(1)
	return e.poly.Clone(), true
}

// GetOrCompute returns the cached NFP for the key, computing it with fn
// when absent. Exactly one caller runs fn per key; the rest wait for the
// published result. A (nil, nil) result means no fit exists and is cached
// like any other value. Errors are cached for the run so a faulting pair
// is not retried by every generation.
func (c *Cache) GetOrCompute(key Key, fn func() (*model.Polygon, error)) (*model.Polygon, error) {
	ks := key.String()
	c.mu.Lock()
	if e, exists := c.entries[ks]; exists {
		c.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		c.hits.Add(1)
		return e.poly.Clone(), nil
	}
	e := &entry{ready: make(chan struct{})}
	c.entries[ks] = e
	c.mu.Unlock()

	c.misses.Add(1)
	c.computes.Add(1)
	e.poly, e.err = fn()
	close(e.ready)

	if e.err == nil && c.store != nil {
		c.store.Append(key, e.poly)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.poly.Clone(), nil
}

// Len returns the number of Ready or Pending entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats snapshots the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}

// Close flushes and closes the durable store, if any.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
