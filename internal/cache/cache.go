// SPDX-License-Identifier: MIT

// Package cache provides an explicit cache-aside component used by the
// record services: consulted before the backing store on reads, updated
// after writes, invalidated on deletes. Nothing here is implicit; the
// call sites decide when the cache participates.
package cache

import (
	"sync"
	"time"
)

// Cache is a key/value cache with per-entry TTL.
type Cache interface {
	// Get returns the cached value, or false when absent or expired.
	Get(key string) (any, bool)
	// Put stores a value under key for the given TTL.
	Put(key string, value any, ttl time.Duration)
	// Invalidate removes the entry for key.
	Invalidate(key string)
	// Stats returns hit/miss counters.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Size      int
}

type entry struct {
	value    any
	deadline time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.deadline)
}

// Memory is the in-process implementation.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	stats    Stats
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates an in-memory cache. When cleanupInterval is positive a
// background janitor removes expired entries on that cadence until Close.
func NewMemory(cleanupInterval time.Duration) *Memory {
	c := &Memory{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

// Close stops the janitor. The cache itself stays usable.
func (c *Memory) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Memory) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *Memory) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, deadline: time.Now().Add(ttl)}
	c.stats.Puts++
}

func (c *Memory) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

func (c *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case <-c.stop:
				return
			default:
			}
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory) deleteExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
	}
}

// noOpCache disables caching without changing call sites.
type noOpCache struct{}

// NewNoOp creates a cache that never stores anything.
func NewNoOp() Cache { return noOpCache{} }

func (noOpCache) Get(string) (any, bool)         { return nil, false }
func (noOpCache) Put(string, any, time.Duration) {}
func (noOpCache) Invalidate(string)              {}
func (noOpCache) Stats() Stats                   { return Stats{} }
