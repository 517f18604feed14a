package models

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Channel is the surface an engagement is delivered through.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// DeliveryStatus is the outcome of one dispatched action.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// EngagementDelivery records one dispatched action. RuleID holds the journey id and
// TemplateID the node id (or the node's template_id when set).
type EngagementDelivery struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	RuleID          string         `json:"rule_id"`
	TemplateID      string         `json:"template_id"`
	Channel         Channel        `json:"channel"`
	DeliveryContext map[string]any `json:"delivery_context"`
	RenderedContent map[string]any `json:"rendered_content"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DeliveryPatch is a partial update of a delivery. Context is merged into the
// existing delivery context, overriding keys that already exist.
type DeliveryPatch struct {
	Status  *DeliveryStatus
	Context map[string]any
}

// Apply writes the patch onto the delivery, merging Context over the existing
// delivery context.
func (p DeliveryPatch) Apply(delivery *EngagementDelivery, now time.Time) error {
	if p.Status != nil {
		delivery.DeliveryStatus = *p.Status
	}

	if len(p.Context) > 0 {
		if delivery.DeliveryContext == nil {
			delivery.DeliveryContext = make(map[string]any, len(p.Context))
		}

		if err := mergo.Merge(&delivery.DeliveryContext, p.Context, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge delivery context: %w", err)
		}
	}

	delivery.UpdatedAt = now

	return nil
}
