package instagram

import (
	"context"
	"sync"
)

type sentMessage struct {
	Payload       map[string]any
	RecipientID   string
	MessagingType string
}

type sentAction struct {
	Action      SenderAction
	RecipientID string
}

// fakeTransport records sends in order and can fail selected calls.
type fakeTransport struct {
	mu        sync.Mutex
	messages  []sentMessage
	actions   []sentAction
	order     []string
	sendErr   error
	actionErr error
}

func (f *fakeTransport) Send(_ context.Context, payload map[string]any, recipientID string, messagingType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{Payload: payload, RecipientID: recipientID, MessagingType: messagingType})
	f.order = append(f.order, "send")
	return f.sendErr
}

func (f *fakeTransport) SendAction(_ context.Context, action SenderAction, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, sentAction{Action: action, RecipientID: recipientID})
	f.order = append(f.order, string(action))
	return f.actionErr
}

func (f *fakeTransport) actionCount(action SenderAction) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, sent := range f.actions {
		if sent.Action == action {
			count++
		}
	}

	return count
}
