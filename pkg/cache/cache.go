// Package cache implements the in-process read-through cache behind the
// public listing pages. Entries serve fresh for one TTL, then stale for a
// revalidation window while a single background reload runs; loads for the
// same key are coalesced so a cold popular listing hits the database once.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	// TTL is the fresh window. After it the entry is served stale while a
	// background reload runs, for up to StaleWhileRevalidate longer.
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	// NegativeTTL caches loader misses and errors. Zero disables negative
	// caching entirely.
	NegativeTTL time.Duration
	// MaxEntries bounds the cache; least recently used entries go first.
	// Zero means unbounded.
	MaxEntries int
}

// MetricsHooks receives cache events. Nil hooks are skipped.
type MetricsHooks struct {
	OnHit   func(labels map[string]string)
	OnMiss  func(labels map[string]string)
	OnStale func(labels map[string]string)
	OnStore func(labels map[string]string)
	OnError func(labels map[string]string)
}

// Loader fetches the value on a miss. ok=false marks a negative result
// (absent or not public) which is only cached when NegativeTTL is set.
type Loader func(ctx context.Context, key string) (interface{}, bool, error)

type entry struct {
	key        string
	value      interface{}
	err        error
	negative   bool
	freshUntil time.Time
	staleUntil time.Time
	refreshing bool
	elem       *list.Element
}

type Cache struct {
	mu      sync.Mutex
	items   map[string]*entry
	lru     *list.List
	opts    Options
	metrics MetricsHooks
	loads   singleflight.Group
}

func New(opts Options, hooks MetricsHooks) *Cache {
	return &Cache{
		items:   make(map[string]*entry),
		lru:     list.New(),
		opts:    opts,
		metrics: hooks,
	}
}

type lookupState int

const (
	lookupMissing lookupState = iota
	lookupFresh
	lookupStale
)

// lookup classifies the entry under lock, expiring it when past the stale
// window and marking it refreshing when a stale read should trigger a
// reload. The returned entry fields are copied out before unlock.
func (c *Cache) lookup(key string, now time.Time) (lookupState, interface{}, bool, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return lookupMissing, nil, false, nil, false
	}
	if now.After(e.staleUntil) {
		c.removeLocked(e)
		return lookupMissing, nil, false, nil, false
	}
	c.lru.MoveToBack(e.elem)
	if now.Before(e.freshUntil) {
		return lookupFresh, e.value, !e.negative, e.err, false
	}
	startRefresh := !e.refreshing
	e.refreshing = true
	return lookupStale, e.value, !e.negative, e.err, startRefresh
}

// Get returns the cached value for key, loading it when absent. Stale
// entries answer immediately and refresh once in the background on a
// context detached from the caller's, so a finished request cannot cancel
// the reload.
func (c *Cache) Get(ctx context.Context, key string, loader Loader) (interface{}, bool, error) {
	state, value, ok, err, startRefresh := c.lookup(key, time.Now())
	switch state {
	case lookupFresh:
		c.emit(c.metrics.OnHit, key)
		return value, ok, err
	case lookupStale:
		c.emit(c.metrics.OnStale, key)
		if startRefresh {
			refreshCtx := context.WithoutCancel(ctx)
			go func() {
				_, _, _ = c.loads.Do(key, func() (interface{}, error) {
					v, loaded, loadErr := loader(refreshCtx, key)
					c.store(key, v, loaded, loadErr)
					return nil, nil
				})
			}()
		}
		return value, ok, err
	}

	c.emit(c.metrics.OnMiss, key)
	type loaded struct {
		value interface{}
		ok    bool
		err   error
	}
	result, _, _ := c.loads.Do(key, func() (interface{}, error) {
		v, loadedOK, loadErr := loader(ctx, key)
		c.store(key, v, loadedOK, loadErr)
		return loaded{value: v, ok: loadedOK, err: loadErr}, nil
	})
	res := result.(loaded)
	if !res.ok {
		return nil, false, res.err
	}
	return res.value, true, nil
}

func (c *Cache) store(key string, value interface{}, ok bool, err error) {
	now := time.Now()
	if !ok && c.opts.NegativeTTL <= 0 {
		// Negative caching is off: drop any stale entry so the next read
		// goes back to the loader.
		c.mu.Lock()
		if e, exists := c.items[key]; exists {
			c.removeLocked(e)
		}
		c.mu.Unlock()
		c.emit(c.metrics.OnError, key)
		return
	}

	e := &entry{key: key}
	if ok {
		e.value = value
		e.freshUntil = now.Add(c.opts.TTL)
		e.staleUntil = e.freshUntil.Add(c.opts.StaleWhileRevalidate)
	} else {
		e.err = err
		e.negative = true
		e.freshUntil = now.Add(c.opts.NegativeTTL)
		e.staleUntil = e.freshUntil
	}

	c.mu.Lock()
	if prev, exists := c.items[key]; exists {
		c.lru.Remove(prev.elem)
	}
	e.elem = c.lru.PushBack(e)
	c.items[key] = e
	c.evictLocked()
	c.mu.Unlock()
	c.emit(c.metrics.OnStore, key)
}

// Set inserts a value directly with the given fresh TTL, bypassing the
// loader path. Used to warm entries right after a write.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	now := time.Now()
	e := &entry{
		key:        key,
		value:      value,
		freshUntil: now.Add(ttl),
		staleUntil: now.Add(ttl).Add(c.opts.StaleWhileRevalidate),
	}
	c.mu.Lock()
	if prev, exists := c.items[key]; exists {
		c.lru.Remove(prev.elem)
	}
	e.elem = c.lru.PushBack(e)
	c.items[key] = e
	c.evictLocked()
	c.mu.Unlock()
}

// Peek returns the cached value without loading or touching LRU order.
// Stale entries still answer; negatives and expired entries do not.
func (c *Cache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || e.negative || time.Now().After(e.staleUntil) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}
	c.mu.Unlock()
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.elem)
	delete(c.items, e.key)
}

func (c *Cache) evictLocked() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.items) > c.opts.MaxEntries {
		oldest := c.lru.Front()
		if oldest == nil {
			return
		}
		c.removeLocked(oldest.Value.(*entry))
	}
}

func (c *Cache) emit(hook func(map[string]string), key string) {
	if hook != nil {
		hook(map[string]string{"key": key})
	}
}
