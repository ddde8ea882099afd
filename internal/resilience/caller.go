// SPDX-License-Identifier: MIT

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/registry"
)

var (
	// ErrNotDiscovered means the registry reported zero instances for the
	// target service; the remote call is never attempted.
	ErrNotDiscovered = errors.New("service not discovered in registry")
	// ErrRetriesExhausted means all retry attempts failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// permanentError tags a business failure so it survives the retry layer
// and stays distinguishable from transient exhaustion.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a business failure that must not be retried.
func Permanent(err error) error {
	return backoff.Permanent(&permanentError{err: err})
}

// Caller wraps a remote call with a registry presence check, bounded
// retry, a circuit breaker and a fallback. Fallback results are
// valid-but-degraded values, not errors: when the fallback runs the
// original failure is logged and swallowed.
type Caller[T any] struct {
	service     string
	registry    registry.Registry
	breaker     *CircuitBreaker
	fallback    func(error) T
	maxAttempts uint
	interval    time.Duration
	logger      zerolog.Logger
}

// CallerConfig collects the knobs for NewCaller. Service names the
// target in the registry, Breaker is the shared per-destination
// instance and Fallback supplies the degraded result. MaxAttempts
// counts every try including the first (default 3); Interval is the
// constant delay between tries (default 100ms).
type CallerConfig[T any] struct {
	Service     string
	Registry    registry.Registry
	Breaker     *CircuitBreaker
	Fallback    func(error) T
	MaxAttempts uint
	Interval    time.Duration
	Logger      zerolog.Logger
}

// NewCaller builds a resilient caller for one target service.
func NewCaller[T any](cfg CallerConfig[T]) *Caller[T] {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Caller[T]{
		service:     cfg.Service,
		registry:    cfg.Registry,
		breaker:     cfg.Breaker,
		fallback:    cfg.Fallback,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		logger:      cfg.Logger,
	}
}

// Call invokes fn guarded by the full pipeline. The registry presence
// check runs first: zero instances fails fast with ErrNotDiscovered and
// fn is never invoked. Transient failures are retried up to the attempt
// budget; business failures wrapped with Permanent are not. An open
// circuit or an exhausted budget yields the fallback value with a nil
// error.
func (c *Caller[T]) Call(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	instances, err := c.registry.Instances(ctx, c.service)
	if err != nil {
		return zero, fmt.Errorf("registry lookup for %s: %w", c.service, err)
	}
	if len(instances) == 0 {
		c.logger.Error().Str(log.FieldService, c.service).Msg("service not discovered, aborting remote call")
		return zero, fmt.Errorf("%w: %s", ErrNotDiscovered, c.service)
	}
	c.logger.Debug().Str(log.FieldService, c.service).Int("instances", len(instances)).Msg("registry presence check passed")

	var result T
	execErr := c.breaker.Execute(func() error {
		var retryErr error
		result, retryErr = backoff.Retry(ctx, func() (T, error) {
			return fn(ctx)
		},
			backoff.WithBackOff(backoff.NewConstantBackOff(c.interval)),
			backoff.WithMaxTries(c.maxAttempts),
		)
		if retryErr != nil {
			var perm *permanentError
			if errors.As(retryErr, &perm) {
				// Business failure: never retried, still trips the breaker.
				return retryErr
			}
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, retryErr)
		}
		return nil
	})

	if execErr != nil {
		c.logger.Warn().Err(execErr).
			Str(log.FieldService, c.service).
			Str("breaker_state", string(c.breaker.State())).
			Msg("remote call degraded to fallback")
		return c.fallback(execErr), nil
	}
	return result, nil
}
