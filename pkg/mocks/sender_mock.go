package mocks

import (
	"context"

	"github.com/dukex/journeys/pkg/dispatch"
	"github.com/stretchr/testify/mock"
)

// MockSMSSender is a mock implementation of dispatch.SMSSender interface.
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, msg dispatch.SMSMessage) (*dispatch.SendResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.SendResult), args.Error(1)
}

// MockPushSender is a mock implementation of dispatch.PushSender interface.
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) SendPush(ctx context.Context, msg dispatch.PushMessage) (*dispatch.SendResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.SendResult), args.Error(1)
}
