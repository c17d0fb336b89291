// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache provides a bounded, time-aware LRU cache.
// It backs the model list cache in the registry, the translation result cache
// and the in-memory session store.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is a single cached value tracked by the LRU list.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	element   *list.Element
}

// Metrics tracks cache performance statistics.
type Metrics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// Cache is a size-bounded LRU cache whose entries expire after a TTL.
// A zero TTL keeps entries until they are evicted or deleted.
type Cache[K comparable, V any] struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	entries map[K]*entry[K, V]
	lruList *list.List

	mu      sync.Mutex
	metrics Metrics
}

// New creates a cache holding at most maxSize entries, each valid for ttl.
// A non-positive maxSize defaults to 1024.
func New[K comparable, V any](maxSize int, ttl time.Duration) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]*entry[K, V]),
		lruList: list.New(),
	}
}

// Get returns the value for key when present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.metrics.Misses++
		return zero, false
	}
	if c.expired(e) {
		c.removeLocked(e)
		c.metrics.Expired++
		c.metrics.Misses++
		return zero, false
	}

	c.lruList.MoveToFront(e.element)
	c.metrics.Hits++
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key, overriding the default TTL.
// If the cache is full, the least recently used entry is evicted.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.lruList.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: expiresAt}
	e.element = c.lruList.PushFront(e)
	c.entries[key] = e
}

// Delete removes key from the cache. It reports whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}

// Clear removes all entries. Metrics counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.lruList = list.New()
}

// Len returns the number of stored entries, expired ones included until they are touched.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetTTL changes the default TTL for entries stored from now on.
func (c *Cache[K, V]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl < 0 {
		ttl = 0
	}
	c.ttl = ttl
}

// TTL returns the default TTL.
func (c *Cache[K, V]) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// SetClock replaces the time source. Intended for tests in dependent packages.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (c *Cache[K, V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if c.expired(e) {
			c.removeLocked(e)
			removed++
		}
	}
	c.metrics.Expired += int64(removed)
	return removed
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[K, V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metrics
	m.Size = len(c.entries)
	m.MaxSize = c.maxSize
	return m
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

// evictLRU removes the least recently used entry. Must be called with lock held.
func (c *Cache[K, V]) evictLRU() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*entry[K, V]))
	c.metrics.Evictions++
}

func (c *Cache[K, V]) removeLocked(e *entry[K, V]) {
	delete(c.entries, e.key)
	c.lruList.Remove(e.element)
}
