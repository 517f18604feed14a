package dispatch

import "context"

// SMSMessage is the request handed to the SMS send capability.
type SMSMessage struct {
	WorkspaceID string `json:"workspace_id"`
	To          string `json:"to"`
	Body        string `json:"body"`
	From        string `json:"from,omitempty"`
}

// PushMessage is the request handed to the push send capability.
type PushMessage struct {
	WorkspaceID string         `json:"workspace_id"`
	TargetType  string         `json:"target_type"`
	TargetValue string         `json:"target_value"`
	Title       string         `json:"title,omitempty"`
	Message     string         `json:"message,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// SendResult is what a provider answered for one send.
type SendResult struct {
	Success   bool           `json:"success"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Response  map[string]any `json:"response,omitempty"`
}

// context converts the result into the keys merged into delivery_context.
func (r *SendResult) context() map[string]any {
	deliveryContext := make(map[string]any, 2)
	if r == nil {
		return deliveryContext
	}

	if r.MessageID != "" {
		deliveryContext["provider_message_id"] = r.MessageID
	}

	if len(r.Response) > 0 {
		deliveryContext["provider_response"] = r.Response
	}

	return deliveryContext
}

// SMSSender is the external SMS capability. An error means the send was not accepted.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (*SendResult, error)
}

// PushSender is the external push capability. An error means the send was not accepted.
type PushSender interface {
	SendPush(ctx context.Context, msg PushMessage) (*SendResult, error)
}
