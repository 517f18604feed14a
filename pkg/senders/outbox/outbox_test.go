package outbox_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/journeys/pkg/dispatch"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/senders/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedID() string { return "msg-1" }

func TestSender_SendSMS(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "+15550100", mock.MatchedBy(func(e events.SMSRequested) bool {
		return e.MessageID == "msg-1" && e.Body == "hello" && e.WorkspaceID == "ws-1" && e.Type == events.SMSRequestedEvent
	})).Return(nil)

	sender := outbox.NewSender(bus, fixedID, slog.Default())

	result, err := sender.SendSMS(t.Context(), dispatch.SMSMessage{WorkspaceID: "ws-1", To: "+15550100", Body: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, true, result.Response["queued"])

	bus.AssertExpectations(t)
}

func TestSender_SendSMSPublishFailure(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	sender := outbox.NewSender(bus, fixedID, slog.Default())

	_, err := sender.SendSMS(t.Context(), dispatch.SMSMessage{WorkspaceID: "ws-1", To: "+15550100", Body: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestSender_SendPush(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "device:abc", mock.MatchedBy(func(e events.PushRequested) bool {
		return e.TargetValue == "abc" && e.Title == "Hi"
	})).Return(nil)

	sender := outbox.NewSender(bus, fixedID, slog.Default())

	result, err := sender.SendPush(t.Context(), dispatch.PushMessage{WorkspaceID: "ws-1", TargetType: "device", TargetValue: "abc", Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.MessageID)

	_, err = sender.SendPush(t.Context(), dispatch.PushMessage{WorkspaceID: "ws-1"})
	require.Error(t, err)

	bus.AssertExpectations(t)
}
