package bus

import "time"

type EventType string

const (
	EventMessageReceived    EventType = "message_received"
	EventMessageHandled     EventType = "message_handled"
	EventMessageFailed      EventType = "message_failed"
	EventMessageUnsupported EventType = "message_unsupported"
	EventMessageDuplicate   EventType = "message_duplicate"
	EventWebhookRejected    EventType = "webhook_rejected"
)

// Event describes one step of webhook processing for observers.
type Event struct {
	Type       EventType `json:"type"`
	At         time.Time `json:"at"`
	Channel    string    `json:"channel,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}
