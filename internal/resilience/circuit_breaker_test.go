// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("user-service", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Short-circuits while open.
	err := cb.Execute(func() error {
		t.Fatal("function must not run while circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("user-service", 1, 30*time.Second, WithClock(clock))

	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateOpen, cb.State())

	// After the reset timeout, a probe is allowed; success closes.
	clock.now = clock.now.Add(31 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("user-service", 1, 30*time.Second, WithClock(clock))

	assert.Error(t, cb.Execute(func() error { return errBoom }))
	clock.now = clock.now.Add(31 * time.Second)

	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("user-service", 3, 30*time.Second)

	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.NoError(t, cb.Execute(func() error { return nil }))

	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateClosed, cb.State())
}
