// SPDX-License-Identifier: MIT

// Package metrics registers the Prometheus instruments shared by the
// ordermesh services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordermesh_circuit_breaker_state",
		Help: "Circuit breaker state by component (the active state is 1, others 0)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component", "reason"})

	routedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_gateway_routed_requests_total",
		Help: "Requests routed by the gateway, by destination service, profile and outcome",
	}, []string{"service", "profile", "outcome"})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_events_consumed_total",
		Help: "Order events consumed, by topic and result",
	}, []string{"topic", "result"})

	eventRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_event_retries_total",
		Help: "Order event processing retries, by topic",
	}, []string{"topic"})

	eventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_events_dead_lettered_total",
		Help: "Order events redelivered to the dead-letter topic",
	}, []string{"topic"})

	lockAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordermesh_lock_acquisitions_total",
		Help: "Distributed lock acquisition attempts, by outcome (acquired, conflict, error)",
	}, []string{"outcome"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}

// RecordRoutedRequest records one gateway routing decision.
func RecordRoutedRequest(service, profile, outcome string) {
	routedRequests.WithLabelValues(service, profile, outcome).Inc()
}

// RecordEventConsumed records one consumed event with its result
// ("processed", "failed").
func RecordEventConsumed(topic, result string) {
	eventsConsumed.WithLabelValues(topic, result).Inc()
}

// RecordEventRetry records one redelivery of a failed event.
func RecordEventRetry(topic string) {
	eventRetries.WithLabelValues(topic).Inc()
}

// RecordEventDeadLettered records one event archived to the DLT.
func RecordEventDeadLettered(topic string) {
	eventsDeadLettered.WithLabelValues(topic).Inc()
}

// RecordLockAcquisition records one lock attempt outcome.
func RecordLockAcquisition(outcome string) {
	lockAcquisitions.WithLabelValues(outcome).Inc()
}
