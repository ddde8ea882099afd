// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"sync"
)

// MemBroker is an in-process event channel with the same contract as the
// Kafka wiring: named topics, consumer groups, per-key ordering (the
// single delivery queue per group makes it total here, which is
// stronger, never weaker). It backs local runs and tests.
type MemBroker struct {
	mu     sync.Mutex
	log    map[string][]Message             // append-only per topic
	groups map[string]map[string]*MemSource // topic -> group -> subscription
}

// NewMemBroker creates an empty broker.
func NewMemBroker() *MemBroker {
	return &MemBroker{
		log:    make(map[string][]Message),
		groups: make(map[string]map[string]*MemSource),
	}
}

// append durably records the message and fans it out to every group.
func (b *MemBroker) append(topic string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg.Topic = topic
	b.log[topic] = append(b.log[topic], msg)
	for _, src := range b.groups[topic] {
		src.deliver(msg)
	}
}

// Log returns a copy of everything appended to topic.
func (b *MemBroker) Log(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.log[topic]))
	copy(out, b.log[topic])
	return out
}

// Subscribe attaches a consumer group to topic. Messages appended before
// the subscription existed are replayed first.
func (b *MemBroker) Subscribe(topic, group string) *MemSource {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.groups[topic] == nil {
		b.groups[topic] = make(map[string]*MemSource)
	}
	if existing, ok := b.groups[topic][group]; ok {
		return existing
	}

	src := &MemSource{queue: make(chan Message, 256)}
	for _, msg := range b.log[topic] {
		src.deliver(msg)
	}
	b.groups[topic][group] = src
	return src
}

// Publisher returns an OrderEvent publisher bound to topic.
func (b *MemBroker) Publisher(topic string) *MemPublisher {
	return &MemPublisher{broker: b, topic: topic}
}

// DeadLetterer returns a DLT publisher for topic.
func (b *MemBroker) DeadLetterer(topic string) *MemDeadLetter {
	return &MemDeadLetter{broker: b, topic: topic + DLTSuffix}
}

// MemPublisher implements Publisher against a MemBroker topic.
type MemPublisher struct {
	broker *MemBroker
	topic  string
}

// Publish appends one event.
func (p *MemPublisher) Publish(_ context.Context, event OrderEvent) error {
	value, err := event.Marshal()
	if err != nil {
		return err
	}
	p.broker.append(p.topic, Message{Key: event.Key(), Value: value})
	return nil
}

// MemDeadLetter implements DeadLetterer against a MemBroker.
type MemDeadLetter struct {
	broker *MemBroker
	topic  string
}

// DeadLetter appends the original payload to the DLT topic.
func (d *MemDeadLetter) DeadLetter(_ context.Context, msg Message) error {
	d.broker.append(d.topic, Message{Key: msg.Key, Value: msg.Value})
	return nil
}

// MemSource is one group subscription on a MemBroker topic.
type MemSource struct {
	queue chan Message
}

func (s *MemSource) deliver(msg Message) {
	select {
	case s.queue <- msg:
	default:
		// Bounded test broker: dropping beats blocking the publisher.
	}
}

// Fetch blocks until a message arrives or ctx is done.
func (s *MemSource) Fetch(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-s.queue:
		return msg, nil
	}
}

// Commit is a no-op; the in-memory queue delivers once per group.
func (s *MemSource) Commit(context.Context, Message) error { return nil }

// Close is a no-op.
func (s *MemSource) Close() error { return nil }
