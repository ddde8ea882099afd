// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisWithClient(client, zerolog.Nop())
}

func TestRedisCache_PutGet(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Put("order:9", map[string]any{"product": "laptop"}, 5*time.Minute)

	val, ok := c.Get("order:9")
	if !ok {
		t.Fatal("expected value to be found")
	}
	m, ok := val.(map[string]any)
	if !ok || m["product"] != "laptop" {
		t.Errorf("unexpected cached value: %v", val)
	}
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, c := setupMiniRedis(t)

	if _, ok := c.Get("nonexistent"); ok {
		t.Error("expected miss")
	}
	if got := c.Stats().Misses; got != 1 {
		t.Errorf("expected 1 miss, got %d", got)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Put("order:9", "v", 100*time.Millisecond)
	if _, ok := c.Get("order:9"); !ok {
		t.Fatal("expected value before expiry")
	}

	mr.FastForward(150 * time.Millisecond)
	if _, ok := c.Get("order:9"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestRedisCache_Invalidate(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Put("order:9", "v", time.Minute)
	c.Invalidate("order:9")
	if _, ok := c.Get("order:9"); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthcheck failed: %v", err)
	}

	mr.Close()
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected healthcheck failure after server close")
	}
}
