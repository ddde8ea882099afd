// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
)

// DLTListener consumes the dead-letter topic under its own group. It
// only records what it sees; dead-lettered events are never reprocessed.
type DLTListener struct {
	source  Source
	logger  zerolog.Logger
	onEvent func(OrderEvent)
}

// NewDLTListener creates a listener. onEvent may be nil; when set it is
// invoked for every archived event (used for inspection and tests).
func NewDLTListener(source Source, logger zerolog.Logger, onEvent func(OrderEvent)) *DLTListener {
	return &DLTListener{source: source, logger: logger, onEvent: onEvent}
}

// Run consumes the DLT until ctx is cancelled.
func (l *DLTListener) Run(ctx context.Context) error {
	for {
		msg, err := l.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from dead letter topic: %w", err)
		}

		event, err := UnmarshalOrderEvent(msg.Value)
		if err != nil {
			l.logger.Error().Err(err).Str(log.FieldTopic, msg.Topic).Msg("undecodable dead-lettered payload")
		} else {
			l.logger.Error().
				Str(log.FieldTopic, msg.Topic).
				Str(log.FieldOrderID, event.OrderID).
				Str(log.FieldUserID, event.UserID).
				Float64("amount", event.Amount).
				Msg("received message from dead letter topic")
			if l.onEvent != nil {
				l.onEvent(event)
			}
		}

		if err := l.source.Commit(ctx, msg); err != nil {
			l.logger.Error().Err(err).Str(log.FieldTopic, msg.Topic).Msg("dead letter commit failed")
		}
	}
}
