// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ordermesh/ordermesh/internal/log"
)

// Publisher appends order events to the durable channel. Delivery is
// fire-and-forget from the business caller's perspective; no consumer
// ack is awaited.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// PublishBatch publishes each event independently. Partial success is
// possible: when event N fails, events 1..N-1 are already durably
// published. The per-event errors are joined and returned alongside the
// count of events that made it out.
func PublishBatch(ctx context.Context, p Publisher, events []OrderEvent) (int, error) {
	sent := 0
	var errs []error
	for _, ev := range events {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.OrderID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// KafkaProducer publishes to a named partitioned topic. The hash
// balancer keys on orderId, so ordering holds per order id within a
// partition; cross-partition ordering is undefined.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger zerolog.Logger
}

// NewKafkaProducer creates a producer for the given brokers and topic.
func NewKafkaProducer(brokers []string, topic string, logger zerolog.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic:  topic,
		logger: logger,
	}
}

// Publish appends one event to the topic.
func (p *KafkaProducer) Publish(ctx context.Context, event OrderEvent) error {
	value, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.OrderID, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   event.Key(),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.OrderID, err)
	}
	p.logger.Info().
		Str(log.FieldTopic, p.topic).
		Str(log.FieldEventID, event.EventID).
		Str(log.FieldOrderID, event.OrderID).
		Str(log.FieldUserID, event.UserID).
		Msg("order event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
