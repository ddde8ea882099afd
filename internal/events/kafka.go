// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSource is a consumer-group subscription backed by kafka-go.
type KafkaSource struct {
	reader *kafka.Reader
	last   kafka.Message
}

// NewKafkaSource subscribes the named group to a topic.
func NewKafkaSource(brokers []string, topic, group string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  group,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
	}
}

// Fetch blocks until a message arrives or ctx is done.
func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	s.last = msg
	return Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}, nil
}

// Commit marks the last fetched message as processed.
func (s *KafkaSource) Commit(ctx context.Context, _ Message) error {
	return s.reader.CommitMessages(ctx, s.last)
}

// Close closes the group subscription.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// KafkaDeadLetter publishes exhausted messages to the dead-letter
// sibling of a topic.
type KafkaDeadLetter struct {
	writer *kafka.Writer
}

// NewKafkaDeadLetter creates a dead-letter publisher for topic.
func NewKafkaDeadLetter(brokers []string, topic string) *KafkaDeadLetter {
	return &KafkaDeadLetter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic + DLTSuffix,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
	}
}

// DeadLetter appends the original payload to the DLT.
func (d *KafkaDeadLetter) DeadLetter(ctx context.Context, msg Message) error {
	return d.writer.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now().UTC(),
	})
}

// Close flushes and closes the writer.
func (d *KafkaDeadLetter) Close() error {
	return d.writer.Close()
}
