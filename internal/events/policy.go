// SPDX-License-Identifier: MIT

package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSimulatedFailure is raised by the failure-injection policy to
// exercise the channel's retry and dead-letter machinery.
var ErrSimulatedFailure = errors.New("simulated processing failure")

// FailurePolicy decides whether to inject a processing failure for an
// event. It is a test harness, not business logic, so it stays pluggable:
// production wiring can install NoFailure.
type FailurePolicy func(OrderEvent) error

// NoFailure never injects a failure.
func NoFailure(OrderEvent) error { return nil }

// EvenOrderIDFailure derives a numeric signal from the order id by
// stripping non-digit characters and fails when the parsed value is
// even. An id with no parsable digits skips the injection and proceeds;
// that degradation is deliberate and must not fail the event.
func EvenOrderIDFailure(e OrderEvent) error {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, e.OrderID)

	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	if n%2 == 0 {
		return fmt.Errorf("%w: order %s", ErrSimulatedFailure, e.OrderID)
	}
	return nil
}
