// SPDX-License-Identifier: MIT

// Package lock implements TTL-based distributed mutual exclusion over a
// shared Redis key space. There is no explicit unlock: expiry is the sole
// release mechanism, which bounds the duplicate-rejection window to the
// TTL. The TTL must exceed the protected critical section's worst-case
// latency or legitimate sequential operations will be wrongly rejected.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
)

// ErrConflict indicates the key is already held by another operation.
// Callers surface this as a duplicate-in-progress rejection; retrying
// inside the same TTL window would only race the current holder.
var ErrConflict = errors.New("lock already held")

const keyPrefix = "lock:"

// RedisLock acquires locks via atomic SET NX with expiry.
type RedisLock struct {
	client *redis.Client
	logger zerolog.Logger
}

// New creates a RedisLock using the given client.
func New(client *redis.Client, logger zerolog.Logger) *RedisLock {
	return &RedisLock{client: client, logger: logger}
}

// TryAcquire atomically sets the key if absent with ttl as expiry.
// It returns false when another holder owns the key. A non-nil error
// means the lock store itself is unreachable, which is a retryable
// infrastructure failure distinct from a held lock.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock store: %w", err)
	}
	if !ok {
		l.logger.Warn().Str(log.FieldLockKey, key).Msg("lock contention: key already held")
	}
	return ok, nil
}

// Acquire wraps TryAcquire and converts contention into ErrConflict.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := l.TryAcquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
