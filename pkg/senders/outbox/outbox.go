// Package outbox implements the SMS and push send capabilities by publishing send
// requests to the event bus. A gateway service consumes the outbox topic.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/dispatch"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
)

// Sender publishes send requests. A request accepted by the bus counts as a
// successful send; MessageID correlates the delivery with the gateway.
type Sender struct {
	publisher eventbus.EventPublisher
	newID     func() string
	logger    *slog.Logger
}

// NewSender creates an outbox sender. newID generates message ids.
func NewSender(publisher eventbus.EventPublisher, newID func() string, logger *slog.Logger) *Sender {
	return &Sender{
		publisher: publisher,
		newID:     newID,
		logger:    logger.With("module", "outbox"),
	}
}

var (
	_ dispatch.SMSSender  = (*Sender)(nil)
	_ dispatch.PushSender = (*Sender)(nil)
)

// SendSMS publishes an SMSRequested event keyed by the destination number.
func (s *Sender) SendSMS(ctx context.Context, msg dispatch.SMSMessage) (*dispatch.SendResult, error) {
	if msg.To == "" {
		return nil, errors.New("outbox: sms destination is empty")
	}

	request := events.SMSRequested{
		BaseEvent:   events.NewBaseEvent(events.SMSRequestedEvent, ""),
		MessageID:   s.newID(),
		WorkspaceID: msg.WorkspaceID,
		To:          msg.To,
		From:        msg.From,
		Body:        msg.Body,
	}

	if err := s.publisher.Publish(ctx, msg.To, request); err != nil {
		return nil, fmt.Errorf("outbox: failed to enqueue sms: %w", err)
	}

	s.logger.DebugContext(ctx, "Enqueued sms", "message_id", request.MessageID, "workspace_id", msg.WorkspaceID)

	return &dispatch.SendResult{
		Success:   true,
		MessageID: request.MessageID,
		Response:  map[string]any{"queued": true, "topic": events.OutboxTopic},
	}, nil
}

// SendPush publishes a PushRequested event keyed by the push target.
func (s *Sender) SendPush(ctx context.Context, msg dispatch.PushMessage) (*dispatch.SendResult, error) {
	if msg.TargetType == "" || msg.TargetValue == "" {
		return nil, errors.New("outbox: push target is empty")
	}

	request := events.PushRequested{
		BaseEvent:   events.NewBaseEvent(events.PushRequestedEvent, ""),
		MessageID:   s.newID(),
		WorkspaceID: msg.WorkspaceID,
		TargetType:  msg.TargetType,
		TargetValue: msg.TargetValue,
		Title:       msg.Title,
		Message:     msg.Message,
		Data:        msg.Data,
	}

	if err := s.publisher.Publish(ctx, msg.TargetType+":"+msg.TargetValue, request); err != nil {
		return nil, fmt.Errorf("outbox: failed to enqueue push: %w", err)
	}

	s.logger.DebugContext(ctx, "Enqueued push", "message_id", request.MessageID, "target_type", msg.TargetType)

	return &dispatch.SendResult{
		Success:   true,
		MessageID: request.MessageID,
		Response:  map[string]any{"queued": true, "topic": events.OutboxTopic},
	}, nil
}
