// Package events defines the messages exchanged over the event bus by the journey services.
package events

import (
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "journeys.events"           // Inbound user events and journey lifecycle
const OutboxTopic = "journeys.outbox"     // Send requests for external channels
const EventMetadataKey = "key"            // Partition key, the user id for user events
const EventTypeMetadataKey = "event_type" // Discriminator used to pick the payload type

const (
	// Inbound behavioral event for a user.
	UserEventReceivedEvent EventType = "journey.event.received"

	// Journey lifecycle.
	JourneyPublishedEvent EventType = "journey.published"
	JourneyPausedEvent    EventType = "journey.paused"

	// Outbound send requests.
	SMSRequestedEvent  EventType = "journey.sms.requested"
	PushRequestedEvent EventType = "journey.push.requested"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JourneyID string         `json:"journey_id,omitempty"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UserEventReceived carries an inbound event to the worker, which calls OnEvent.
type UserEventReceived struct {
	BaseEvent

	UserID      string       `json:"user_id"`
	WorkspaceID string       `json:"workspace_id,omitempty"`
	Event       models.Event `json:"event"`
}

func (e UserEventReceived) GetType() EventType {
	return UserEventReceivedEvent
}

type JourneyPublished struct {
	BaseEvent

	Version int `json:"version"`
}

func (e JourneyPublished) GetType() EventType {
	return JourneyPublishedEvent
}

type JourneyPaused struct {
	BaseEvent
}

func (e JourneyPaused) GetType() EventType {
	return JourneyPausedEvent
}

// SMSRequested asks the SMS gateway to deliver a message. MessageID is the
// identifier recorded as provider_message_id on the delivery.
type SMSRequested struct {
	BaseEvent

	MessageID   string `json:"message_id"`
	WorkspaceID string `json:"workspace_id"`
	To          string `json:"to"`
	From        string `json:"from,omitempty"`
	Body        string `json:"body"`
}

func (e SMSRequested) GetType() EventType {
	return SMSRequestedEvent
}

// PushRequested asks the push gateway to deliver a notification.
type PushRequested struct {
	BaseEvent

	MessageID   string         `json:"message_id"`
	WorkspaceID string         `json:"workspace_id"`
	TargetType  string         `json:"target_type"`
	TargetValue string         `json:"target_value"`
	Title       string         `json:"title,omitempty"`
	Message     string         `json:"message,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

func (e PushRequested) GetType() EventType {
	return PushRequestedEvent
}

func NewBaseEvent(eventType EventType, journeyID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JourneyID: journeyID,
		Metadata:  make(map[string]any),
	}
}

// New returns an empty payload for eventType, or nil when the type is unknown.
func New(eventType EventType) any {
	switch eventType {
	case UserEventReceivedEvent:
		return &UserEventReceived{}
	case JourneyPublishedEvent:
		return &JourneyPublished{}
	case JourneyPausedEvent:
		return &JourneyPaused{}
	case SMSRequestedEvent:
		return &SMSRequested{}
	case PushRequestedEvent:
		return &PushRequested{}
	default:
		return nil
	}
}

// TopicFor returns the topic an event type travels on.
func TopicFor(eventType EventType) string {
	switch eventType {
	case SMSRequestedEvent, PushRequestedEvent:
		return OutboxTopic
	default:
		return Topic
	}
}
