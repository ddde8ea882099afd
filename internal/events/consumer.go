// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/metrics"
	"github.com/ordermesh/ordermesh/internal/token"
)

// DLTSuffix names the dead-letter sibling of a topic.
const DLTSuffix = ".DLT"

// ErrInvalidToken is raised when an event carries a token that fails
// verification. It propagates so the channel's retry machinery acts on it.
var ErrInvalidToken = errors.New("invalid token in event")

// Message is one raw record received from or sent to a channel.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Source is a consumer-group subscription on one topic.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// DeadLetterer archives a message on the dead-letter sibling topic.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg Message) error
}

// TokenVerifier checks embedded bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (token.Claims, error)
}

// ConsumerConfig collects the consumer dependencies.
type ConsumerConfig struct {
	Source     Source
	DeadLetter DeadLetterer
	Verifier   TokenVerifier
	Policy     FailurePolicy // nil means NoFailure
	MaxRetries int           // redeliveries after the first attempt (default 3)
	RetryDelay time.Duration // pause between attempts (default 50ms)
	Topic      string
	Logger     zerolog.Logger
}

// Consumer processes order events at-least-once. A failed event is
// redelivered up to the retry budget; past it, the event is archived on
// the dead-letter topic and the error is not raised again.
type Consumer struct {
	source     Source
	deadLetter DeadLetterer
	verifier   TokenVerifier
	policy     FailurePolicy
	maxRetries int
	retryDelay time.Duration
	topic      string
	logger     zerolog.Logger
}

// NewConsumer builds a consumer from cfg.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Policy == nil {
		cfg.Policy = NoFailure
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	return &Consumer{
		source:     cfg.Source,
		deadLetter: cfg.DeadLetter,
		verifier:   cfg.Verifier,
		policy:     cfg.Policy,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		topic:      cfg.Topic,
		logger:     cfg.Logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		if err := c.process(ctx, msg); err != nil {
			// Leaving the message uncommitted makes the channel redeliver
			// it, so the dead-letter archive gets another chance.
			c.logger.Error().Err(err).Str(log.FieldTopic, c.topic).Msg("message left uncommitted")
			continue
		}

		if err := c.source.Commit(ctx, msg); err != nil {
			c.logger.Error().Err(err).Str(log.FieldTopic, c.topic).Msg("commit failed")
		}
	}
}

// process runs the retry loop for one message. A non-nil return means
// the message may not be committed: either the context ended mid-retry
// or the dead-letter archive itself failed.
func (c *Consumer) process(ctx context.Context, msg Message) error {
	event, err := UnmarshalOrderEvent(msg.Value)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldTopic, c.topic).Msg("undecodable event, archiving to dead letter")
		return c.archive(ctx, msg)
	}

	attempts := c.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.handle(event)
		if err == nil {
			metrics.RecordEventConsumed(c.topic, "processed")
			c.logger.Info().
				Str(log.FieldTopic, c.topic).
				Str(log.FieldOrderID, event.OrderID).
				Int(log.FieldAttempt, attempt).
				Msg("order event processed")
			return nil
		}

		c.logger.Error().Err(err).
			Str(log.FieldTopic, c.topic).
			Str(log.FieldOrderID, event.OrderID).
			Int(log.FieldAttempt, attempt).
			Msg("order event processing failed")

		if attempt < attempts {
			metrics.RecordEventRetry(c.topic)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	metrics.RecordEventConsumed(c.topic, "failed")
	c.logger.Error().
		Str(log.FieldTopic, c.topic).
		Str(log.FieldOrderID, event.OrderID).
		Int(log.FieldAttempt, attempts).
		Msg("retry budget exhausted, archiving to dead letter")
	return c.archive(ctx, msg)
}

// handle is one processing attempt.
func (c *Consumer) handle(event OrderEvent) error {
	c.logger.Info().
		Str(log.FieldTopic, c.topic).
		Str(log.FieldEventID, event.EventID).
		Str(log.FieldOrderID, event.OrderID).
		Str(log.FieldUserID, event.UserID).
		Msg("order event received")

	if err := c.policy(event); err != nil {
		return err
	}

	if event.Token == "" {
		c.logger.Warn().
			Str(log.FieldOrderID, event.OrderID).
			Msg("no token attached to order event")
		return nil
	}

	claims, err := c.verifier.Verify(event.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c.logger.Info().
		Str(log.FieldOrderID, event.OrderID).
		Str(log.FieldSubject, claims.Subject).
		Str(log.FieldRole, claims.Authority()).
		Msg("valid token in order event")
	return nil
}

func (c *Consumer) archive(ctx context.Context, msg Message) error {
	if err := c.deadLetter.DeadLetter(ctx, msg); err != nil {
		return fmt.Errorf("dead letter publish to %s: %w", c.topic+DLTSuffix, err)
	}
	metrics.RecordEventDeadLettered(c.topic)
	return nil
}
