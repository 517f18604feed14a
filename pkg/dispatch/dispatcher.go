// Package dispatch executes action nodes and records every dispatch as an engagement delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/template"
)

var (
	// ErrMissingPhoneNumber is recorded when an sms action has no destination number.
	ErrMissingPhoneNumber = errors.New("sms action requires a destination phone number ('to')")

	// ErrMissingPushTarget is recorded when a push action has no target_type or target_value.
	ErrMissingPushTarget = errors.New("push action requires 'target_type' and 'target_value'")

	// ErrMissingWorkspace is recorded when an external send has no workspace to bill.
	ErrMissingWorkspace = errors.New("external send requires a 'workspace_id' in the journey context")

	// ErrSenderNotConfigured is recorded when no send capability is wired for a channel.
	ErrSenderNotConfigured = errors.New("no sender configured for channel")

	// ErrProviderRejected is recorded when a provider answers without success and without detail.
	ErrProviderRejected = errors.New("provider reported an unsuccessful send")
)

// DeliveryStore persists delivery records.
type DeliveryStore interface {
	Create(ctx context.Context, delivery *models.EngagementDelivery) (*models.EngagementDelivery, error)
	Update(ctx context.Context, id string, patch models.DeliveryPatch) error
}

// Dispatcher executes one action node at a time. Execute never returns an error:
// failures end up in the delivery record.
type Dispatcher struct {
	deliveries DeliveryStore
	sms        SMSSender
	push       PushSender
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSMSSender wires the SMS send capability.
func WithSMSSender(sender SMSSender) Option {
	return func(d *Dispatcher) {
		d.sms = sender
	}
}

// WithPushSender wires the push send capability.
func WithPushSender(sender PushSender) Option {
	return func(d *Dispatcher) {
		d.push = sender
	}
}

// NewDispatcher creates a dispatcher writing to deliveries.
func NewDispatcher(deliveries DeliveryStore, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deliveries: deliveries,
		logger:     logger.With("module", "action_dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Execute dispatches the action node for the user in jc. Unknown action types are ignored.
func (d *Dispatcher) Execute(ctx context.Context, jc models.JourneyContext, node *models.Node) {
	action, ok := node.Action()
	if !ok {
		return
	}

	logger := d.logger.With(
		"journey_id", jc.JourneyID,
		"version", jc.Version,
		"node_id", node.ID,
		"user_id", jc.UserID,
		"action_type", action.Type,
	)

	switch action.Type {
	case models.ActionTypeEngagement:
		d.executeEngagement(ctx, logger, jc, node.ID, action)
	case models.ActionTypeEmail:
		d.executeEmail(ctx, logger, jc, node.ID, action)
	case models.ActionTypeSMS:
		d.executeSMS(ctx, logger, jc, node.ID, action)
	case models.ActionTypePush:
		d.executePush(ctx, logger, jc, node.ID, action)
	default:
		logger.DebugContext(ctx, "Ignoring unknown action type")
	}
}

func (d *Dispatcher) executeEngagement(ctx context.Context, logger *slog.Logger, jc models.JourneyContext, nodeID string, action models.ActionData) {
	content, deliveryContext := d.render(jc, nodeID, map[string]string{
		"title":   action.Title,
		"message": action.Message,
	})
	content["meta"] = meta(jc, nodeID)

	d.create(ctx, logger, newDelivery(jc, nodeID, action, models.ChannelInApp, models.DeliveryStatusDelivered, content, deliveryContext))
}

func (d *Dispatcher) executeEmail(ctx context.Context, logger *slog.Logger, jc models.JourneyContext, nodeID string, action models.ActionData) {
	body := action.Content
	if body == "" {
		body = action.Message
	}

	content, deliveryContext := d.render(jc, nodeID, map[string]string{
		"subject": action.Subject,
		"content": body,
	})

	d.create(ctx, logger, newDelivery(jc, nodeID, action, models.ChannelEmail, models.DeliveryStatusDelivered, content, deliveryContext))
}

func (d *Dispatcher) executeSMS(ctx context.Context, logger *slog.Logger, jc models.JourneyContext, nodeID string, action models.ActionData) {
	body := action.Message
	if body == "" {
		body = action.Content
	}

	content, deliveryContext := d.render(jc, nodeID, map[string]string{"body": body})
	deliveryContext["to"] = action.To

	if action.From != "" {
		deliveryContext["from"] = action.From
	}

	delivery, ok := d.create(ctx, logger, newDelivery(jc, nodeID, action, models.ChannelSMS, models.DeliveryStatusPending, content, deliveryContext))
	if !ok {
		return
	}

	switch {
	case action.To == "":
		d.fail(ctx, logger, delivery.ID, ErrMissingPhoneNumber)

		return
	case jc.WorkspaceID == "":
		d.fail(ctx, logger, delivery.ID, ErrMissingWorkspace)

		return
	case d.sms == nil:
		d.fail(ctx, logger, delivery.ID, fmt.Errorf("%w: %s", ErrSenderNotConfigured, models.ChannelSMS))

		return
	}

	renderedBody, _ := content["body"].(string)

	result, err := safeSend(func() (*SendResult, error) {
		return d.sms.SendSMS(ctx, SMSMessage{
			WorkspaceID: jc.WorkspaceID,
			To:          action.To,
			Body:        renderedBody,
			From:        action.From,
		})
	})

	d.settle(ctx, logger, delivery.ID, result, err)
}

func (d *Dispatcher) executePush(ctx context.Context, logger *slog.Logger, jc models.JourneyContext, nodeID string, action models.ActionData) {
	content, deliveryContext := d.render(jc, nodeID, map[string]string{
		"title":   action.Title,
		"message": action.Message,
	})
	deliveryContext["target_type"] = action.TargetType
	deliveryContext["target_value"] = action.TargetValue

	delivery, ok := d.create(ctx, logger, newDelivery(jc, nodeID, action, models.ChannelPush, models.DeliveryStatusPending, content, deliveryContext))
	if !ok {
		return
	}

	switch {
	case action.TargetType == "" || action.TargetValue == "":
		d.fail(ctx, logger, delivery.ID, ErrMissingPushTarget)

		return
	case jc.WorkspaceID == "":
		d.fail(ctx, logger, delivery.ID, ErrMissingWorkspace)

		return
	case d.push == nil:
		d.fail(ctx, logger, delivery.ID, fmt.Errorf("%w: %s", ErrSenderNotConfigured, models.ChannelPush))

		return
	}

	title, _ := content["title"].(string)
	message, _ := content["message"].(string)

	result, err := safeSend(func() (*SendResult, error) {
		return d.push.SendPush(ctx, PushMessage{
			WorkspaceID: jc.WorkspaceID,
			TargetType:  action.TargetType,
			TargetValue: action.TargetValue,
			Title:       title,
			Message:     message,
			Data:        action.Metadata,
		})
	})

	d.settle(ctx, logger, delivery.ID, result, err)
}

// render renders the content fields and seeds the delivery context.
func (d *Dispatcher) render(jc models.JourneyContext, nodeID string, fields map[string]string) (map[string]any, map[string]any) {
	content, err := template.RenderFields(fields, jc.TemplateData())

	deliveryContext := meta(jc, nodeID)
	if jc.SessionID != "" {
		deliveryContext["session_id"] = jc.SessionID
	}

	if err != nil {
		deliveryContext["render_error"] = err.Error()
	}

	return content, deliveryContext
}

func (d *Dispatcher) create(ctx context.Context, logger *slog.Logger, delivery *models.EngagementDelivery) (*models.EngagementDelivery, bool) {
	created, err := d.deliveries.Create(ctx, delivery)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record delivery", "channel", delivery.Channel, "error", err)

		return nil, false
	}

	logger.InfoContext(ctx, "Delivery recorded",
		"delivery_id", created.ID,
		"channel", created.Channel,
		"status", created.DeliveryStatus)

	return created, true
}

func (d *Dispatcher) settle(ctx context.Context, logger *slog.Logger, deliveryID string, result *SendResult, err error) {
	if err != nil {
		d.fail(ctx, logger, deliveryID, err)

		return
	}

	if result == nil || !result.Success {
		failure := ErrProviderRejected
		if result != nil && result.Error != "" {
			failure = errors.New(result.Error)
		}

		d.update(ctx, logger, deliveryID, models.DeliveryStatusFailed, withError(result.context(), failure))

		return
	}

	d.update(ctx, logger, deliveryID, models.DeliveryStatusDelivered, result.context())
}

func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, deliveryID string, cause error) {
	d.update(ctx, logger, deliveryID, models.DeliveryStatusFailed, withError(nil, cause))
}

func (d *Dispatcher) update(ctx context.Context, logger *slog.Logger, deliveryID string, status models.DeliveryStatus, deliveryContext map[string]any) {
	err := d.deliveries.Update(ctx, deliveryID, models.DeliveryPatch{
		Status:  &status,
		Context: deliveryContext,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update delivery", "delivery_id", deliveryID, "status", status, "error", err)

		return
	}

	if status == models.DeliveryStatusFailed {
		logger.WarnContext(ctx, "Delivery failed", "delivery_id", deliveryID, "error", deliveryContext["error"])
	}
}

func newDelivery(
	jc models.JourneyContext,
	nodeID string,
	action models.ActionData,
	channel models.Channel,
	status models.DeliveryStatus,
	content, deliveryContext map[string]any,
) *models.EngagementDelivery {
	templateID := action.TemplateID
	if templateID == "" {
		templateID = nodeID
	}

	return &models.EngagementDelivery{
		UserID:          jc.UserID,
		RuleID:          jc.JourneyID,
		TemplateID:      templateID,
		Channel:         channel,
		DeliveryContext: deliveryContext,
		RenderedContent: content,
		DeliveryStatus:  status,
	}
}

func meta(jc models.JourneyContext, nodeID string) map[string]any {
	return map[string]any{
		"journey_id": jc.JourneyID,
		"version":    jc.Version,
		"node_id":    nodeID,
	}
}

func withError(deliveryContext map[string]any, cause error) map[string]any {
	if deliveryContext == nil {
		deliveryContext = make(map[string]any, 1)
	}

	deliveryContext["error"] = cause.Error()

	return deliveryContext
}

// safeSend turns a panicking provider into a recorded failure.
func safeSend(send func() (*SendResult, error)) (result *SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	return send()
}
