package dispatch_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/journeys/pkg/dispatch"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func journeyContext() models.JourneyContext {
	return models.JourneyContext{
		UserID:      "u1",
		JourneyID:   "journey-1",
		Version:     3,
		SessionID:   "s-1",
		WorkspaceID: "ws-1",
		Event:       models.Event{EventType: "signup"},
	}
}

func actionNode(id string, data models.ActionData) *models.Node {
	return &models.Node{ID: id, Type: models.NodeTypeAction, Data: data}
}

// expectCreate records the created delivery and hands it back with an id.
func expectCreate(deliveries *mocks.MockDeliveryRepository) *models.EngagementDelivery {
	created := &models.EngagementDelivery{}

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.EngagementDelivery")).
		Run(func(args mock.Arguments) {
			*created = *args.Get(1).(*models.EngagementDelivery)
			created.ID = "delivery-1"
		}).
		Return(created, nil).
		Once()

	return created
}

func statusPatch(status models.DeliveryStatus, check func(map[string]any) bool) any {
	return mock.MatchedBy(func(patch models.DeliveryPatch) bool {
		return patch.Status != nil && *patch.Status == status && check(patch.Context)
	})
}

func TestExecute_Engagement(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	created := expectCreate(deliveries)

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default())
	dispatcher.Execute(context.Background(), journeyContext(), actionNode("a1", models.ActionData{
		Type:    models.ActionTypeEngagement,
		Title:   "Welcome",
		Message: "Hello {{ .user_id }}",
	}))

	deliveries.AssertExpectations(t)
	deliveries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, models.ChannelInApp, created.Channel)
	assert.Equal(t, models.DeliveryStatusDelivered, created.DeliveryStatus)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "journey-1", created.RuleID)
	assert.Equal(t, "a1", created.TemplateID)
	assert.Equal(t, "Welcome", created.RenderedContent["title"])
	assert.Equal(t, "Hello u1", created.RenderedContent["message"])
	assert.Equal(t, map[string]any{"journey_id": "journey-1", "version": 3, "node_id": "a1"}, created.RenderedContent["meta"])
}

func TestExecute_Email(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	created := expectCreate(deliveries)

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default())
	dispatcher.Execute(context.Background(), journeyContext(), actionNode("e1", models.ActionData{
		Type:       models.ActionTypeEmail,
		Subject:    "Your plan",
		Content:    "Body",
		TemplateID: "tpl-welcome",
	}))

	deliveries.AssertExpectations(t)
	assert.Equal(t, models.ChannelEmail, created.Channel)
	assert.Equal(t, models.DeliveryStatusDelivered, created.DeliveryStatus)
	assert.Equal(t, "tpl-welcome", created.TemplateID)
	assert.Equal(t, "Your plan", created.RenderedContent["subject"])
}

func TestExecute_SMSMissingNumber(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	sms := &mocks.MockSMSSender{}
	created := expectCreate(deliveries)

	deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
		msg, _ := c["error"].(string)

		return assert.Contains(t, msg, "'to'")
	})).Return(nil).Once()

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithSMSSender(sms))

	require.NotPanics(t, func() {
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("s1", models.ActionData{
			Type:    models.ActionTypeSMS,
			Message: "hi",
		}))
	})

	deliveries.AssertExpectations(t)
	sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)
	assert.Equal(t, models.DeliveryStatusPending, created.DeliveryStatus)
	assert.Equal(t, models.ChannelSMS, created.Channel)
}

func TestExecute_SMSMissingWorkspace(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	sms := &mocks.MockSMSSender{}
	expectCreate(deliveries)

	deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
		return c["error"] == dispatch.ErrMissingWorkspace.Error()
	})).Return(nil).Once()

	jc := journeyContext()
	jc.WorkspaceID = ""

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithSMSSender(sms))
	dispatcher.Execute(context.Background(), jc, actionNode("s1", models.ActionData{Type: models.ActionTypeSMS, To: "+15550100"}))

	deliveries.AssertExpectations(t)
	sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)
}

func TestExecute_SMSSent(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	sms := &mocks.MockSMSSender{}
	expectCreate(deliveries)

	sms.On("SendSMS", mock.Anything, dispatch.SMSMessage{
		WorkspaceID: "ws-1",
		To:          "+15550100",
		Body:        "Code for u1",
		From:        "ACME",
	}).Return(&dispatch.SendResult{
		Success:   true,
		MessageID: "SM123",
		Response:  map[string]any{"segments": float64(1)},
	}, nil).Once()

	deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusDelivered, func(c map[string]any) bool {
		return c["provider_message_id"] == "SM123" && c["provider_response"] != nil
	})).Return(nil).Once()

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithSMSSender(sms))
	dispatcher.Execute(context.Background(), journeyContext(), actionNode("s1", models.ActionData{
		Type:    models.ActionTypeSMS,
		To:      "+15550100",
		From:    "ACME",
		Message: "Code for {{ .user_id }}",
	}))

	deliveries.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestExecute_SMSProviderFailures(t *testing.T) {
	tests := []struct {
		name      string
		result    *dispatch.SendResult
		err       error
		wantError string
	}{
		{name: "send error", err: errors.New("connection refused"), wantError: "connection refused"},
		{name: "unsuccessful result", result: &dispatch.SendResult{Success: false, Error: "invalid number"}, wantError: "invalid number"},
		{name: "unsuccessful result without detail", result: &dispatch.SendResult{}, wantError: dispatch.ErrProviderRejected.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deliveries := &mocks.MockDeliveryRepository{}
			sms := &mocks.MockSMSSender{}
			expectCreate(deliveries)

			if tt.result != nil {
				sms.On("SendSMS", mock.Anything, mock.Anything).Return(tt.result, nil).Once()
			} else {
				sms.On("SendSMS", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			}

			deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
				return c["error"] == tt.wantError
			})).Return(nil).Once()

			dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithSMSSender(sms))
			dispatcher.Execute(context.Background(), journeyContext(), actionNode("s1", models.ActionData{
				Type: models.ActionTypeSMS,
				To:   "+15550100",
			}))

			deliveries.AssertExpectations(t)
		})
	}
}

func TestExecute_SMSProviderPanicIsRecorded(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	sms := &mocks.MockSMSSender{}
	expectCreate(deliveries)

	sms.On("SendSMS", mock.Anything, mock.Anything).Panic("boom").Once()
	deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
		msg, _ := c["error"].(string)

		return msg == "provider panic: boom"
	})).Return(nil).Once()

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithSMSSender(sms))

	require.NotPanics(t, func() {
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("s1", models.ActionData{
			Type: models.ActionTypeSMS,
			To:   "+15550100",
		}))
	})

	deliveries.AssertExpectations(t)
}

func TestExecute_Push(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		deliveries := &mocks.MockDeliveryRepository{}
		push := &mocks.MockPushSender{}
		expectCreate(deliveries)

		deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
			return c["error"] == dispatch.ErrMissingPushTarget.Error()
		})).Return(nil).Once()

		dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithPushSender(push))
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("p1", models.ActionData{
			Type:       models.ActionTypePush,
			TargetType: "device",
		}))

		deliveries.AssertExpectations(t)
		push.AssertNotCalled(t, "SendPush", mock.Anything, mock.Anything)
	})

	t.Run("sent", func(t *testing.T) {
		deliveries := &mocks.MockDeliveryRepository{}
		push := &mocks.MockPushSender{}
		created := expectCreate(deliveries)

		push.On("SendPush", mock.Anything, mock.MatchedBy(func(msg dispatch.PushMessage) bool {
			return msg.TargetType == "segment" && msg.TargetValue == "vip" && msg.Title == "Hey"
		})).Return(&dispatch.SendResult{Success: true, MessageID: "push-9"}, nil).Once()

		deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusDelivered, func(c map[string]any) bool {
			return c["provider_message_id"] == "push-9"
		})).Return(nil).Once()

		dispatcher := dispatch.NewDispatcher(deliveries, slog.Default(), dispatch.WithPushSender(push))
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("p1", models.ActionData{
			Type:        models.ActionTypePush,
			Title:       "Hey",
			TargetType:  "segment",
			TargetValue: "vip",
		}))

		deliveries.AssertExpectations(t)
		push.AssertExpectations(t)
		assert.Equal(t, models.ChannelPush, created.Channel)
		assert.Equal(t, "segment", created.DeliveryContext["target_type"])
	})

	t.Run("no sender configured", func(t *testing.T) {
		deliveries := &mocks.MockDeliveryRepository{}
		expectCreate(deliveries)

		deliveries.On("Update", mock.Anything, "delivery-1", statusPatch(models.DeliveryStatusFailed, func(c map[string]any) bool {
			msg, _ := c["error"].(string)

			return msg == "no sender configured for channel: push"
		})).Return(nil).Once()

		dispatcher := dispatch.NewDispatcher(deliveries, slog.Default())
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("p1", models.ActionData{
			Type:        models.ActionTypePush,
			TargetType:  "device",
			TargetValue: "token",
		}))

		deliveries.AssertExpectations(t)
	})
}

func TestExecute_UnknownActionWritesNothing(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default())
	dispatcher.Execute(context.Background(), journeyContext(), actionNode("x1", models.ActionData{Type: "webhook"}))

	deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExecute_CreateFailureDoesNotPanic(t *testing.T) {
	deliveries := &mocks.MockDeliveryRepository{}
	deliveries.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("disk full")).Once()

	dispatcher := dispatch.NewDispatcher(deliveries, slog.Default())

	require.NotPanics(t, func() {
		dispatcher.Execute(context.Background(), journeyContext(), actionNode("s1", models.ActionData{
			Type: models.ActionTypeSMS,
			To:   "+15550100",
		}))
	})

	deliveries.AssertExpectations(t)
	deliveries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
