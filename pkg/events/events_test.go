package events

import (
	"testing"

	"github.com/dukex/journeys/pkg/models"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_KnownTypes(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  any
		topic     string
	}{
		{UserEventReceivedEvent, &UserEventReceived{}, Topic},
		{JourneyPublishedEvent, &JourneyPublished{}, Topic},
		{JourneyPausedEvent, &JourneyPaused{}, Topic},
		{SMSRequestedEvent, &SMSRequested{}, OutboxTopic},
		{PushRequestedEvent, &PushRequested{}, OutboxTopic},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.IsType(t, tt.expected, New(tt.eventType))
			assert.Equal(t, tt.topic, TopicFor(tt.eventType))
		})
	}

	assert.Nil(t, New("journey.unknown"))
}

func TestUserEventReceived_CarriesTheEvent(t *testing.T) {
	original := UserEventReceived{
		BaseEvent:   NewBaseEvent(UserEventReceivedEvent, ""),
		UserID:      "u1",
		WorkspaceID: "ws-1",
		Event: models.Event{
			EventType:  "signup",
			SessionID:  "s-1",
			Properties: map[string]any{"plan": "pro"},
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"journey.event.received"`)

	decoded, ok := New(original.GetType()).(*UserEventReceived)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(data, decoded))

	assert.Equal(t, "u1", decoded.UserID)
	assert.Equal(t, "signup", decoded.Event.EventType)
	assert.Equal(t, "pro", decoded.Event.Properties["plan"])
	assert.Equal(t, original.ID, decoded.ID)
}
