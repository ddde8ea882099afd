// SPDX-License-Identifier: MIT

// Package events implements the order event pipeline: a Kafka-backed
// producer, a consumer group with bounded retry and dead-letter
// fallback, and an in-memory broker with the same per-key ordering
// semantics for local wiring and tests.
package events

import "encoding/json"

// OrderEvent is the wire shape published to the orders topic. Token is
// attached only when the inbound request carried one; absence is valid.
// EventID identifies one publication for tracing; it plays no part in
// partitioning or dedup.
type OrderEvent struct {
	EventID string  `json:"eventId,omitempty"`
	OrderID string  `json:"orderId"`
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount"`
	Token   string  `json:"token,omitempty"`
}

// Key returns the partition key. Ordering is guaranteed per key only.
func (e OrderEvent) Key() []byte {
	return []byte(e.OrderID)
}

// Marshal encodes the event as JSON.
func (e OrderEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalOrderEvent decodes an event from JSON.
func UnmarshalOrderEvent(data []byte) (OrderEvent, error) {
	var e OrderEvent
	err := json.Unmarshal(data, &e)
	return e, err
}
