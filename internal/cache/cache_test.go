// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := NewMemory(0)

	c.Put("user:1", "alice", 5*time.Minute)

	val, ok := c.Get("user:1")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if val != "alice" {
		t.Errorf("expected 'alice', got %v", val)
	}

	stats := c.Stats()
	if stats.Puts != 1 || stats.Hits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemory(0)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
	if got := c.Stats().Misses; got != 1 {
		t.Errorf("expected 1 miss, got %d", got)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemory(0)

	c.Put("user:1", "alice", 30*time.Millisecond)
	if _, ok := c.Get("user:1"); !ok {
		t.Fatal("expected value before expiry")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("user:1"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemory(0)

	c.Put("user:1", "alice", 5*time.Minute)
	c.Invalidate("user:1")
	if _, ok := c.Get("user:1"); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestMemoryCache_JanitorEvicts(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)

	c.Put("user:1", "alice", 20*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	if size := c.Stats().Size; size != 0 {
		t.Errorf("expected janitor to evict expired entry, size=%d", size)
	}
}

func TestMemoryCache_CloseStopsJanitor(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	c.Close()
	c.Close() // idempotent

	// With the janitor stopped, expired entries linger until read.
	c.Put("user:1", "alice", 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	if size := c.Stats().Size; size != 1 {
		t.Errorf("expected entry to survive after Close, size=%d", size)
	}
	if _, ok := c.Get("user:1"); ok {
		t.Error("expected miss for expired entry")
	}
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOp()
	c.Put("k", "v", time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("no-op cache must never hit")
	}
}
