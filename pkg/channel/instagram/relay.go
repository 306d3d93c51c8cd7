package instagram

import (
	"context"
	"fmt"
	"log/slog"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
)

// Outcome summarizes how the relay finished one delivery. It never leaves
// the connector as an error.
type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeUnsupported    Outcome = "unsupported"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeHandled        Outcome = "handled"
	OutcomeCallbackFailed Outcome = "callback_failed"
)

type Result struct {
	Outcome  Outcome
	Kind     Kind
	SenderID string
	Err      error
}

// Deduplicator remembers message ids already relayed.
type Deduplicator interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// Relay drives one webhook delivery from classification to the dialogue engine.
type Relay struct {
	transport Transport
	renderer  *Renderer
	handler   channel.Handler
	dedup     Deduplicator
	events    *bus.MessageBus
	log       *slog.Logger
}

type RelayOption func(*Relay)

// WithDedup drops messages whose id the store has already seen.
func WithDedup(d Deduplicator) RelayOption {
	return func(r *Relay) { r.dedup = d }
}

// WithEvents publishes relay progress on mb.
func WithEvents(mb *bus.MessageBus) RelayOption {
	return func(r *Relay) { r.events = mb }
}

func NewRelay(transport Transport, handler channel.Handler, log *slog.Logger, opts ...RelayOption) *Relay {
	if log == nil {
		log = slog.Default()
	}

	r := &Relay{
		transport: transport,
		renderer:  NewRenderer(transport, log),
		handler:   handler,
		log:       log.With("component", "channel.instagram.relay"),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handle processes the first message or postback of event and waits for the
// dialogue engine. Handler failures are logged and reported in Result only.
func (r *Relay) Handle(ctx context.Context, event Event, metadata map[string]any) Result {
	raw, ok := FirstHandled(event)
	if !ok {
		return Result{Outcome: OutcomeIgnored}
	}

	msg := Classify(raw)
	deliveryID, _ := metadata[MetadataDeliveryID].(string)
	if !msg.Supported() {
		r.log.Warn("Received a message from instagram that we can not handle", "message", raw, "delivery_id", deliveryID)
		r.publish(ctx, bus.EventMessageUnsupported, msg, deliveryID, nil)
		return Result{Outcome: OutcomeUnsupported, Kind: msg.Kind, SenderID: msg.SenderID}
	}

	if r.isDuplicate(ctx, msg) {
		r.log.Info("Dropping redelivered message", "message_id", msg.MessageID, "sender_id", msg.SenderID)
		r.publish(ctx, bus.EventMessageDuplicate, msg, deliveryID, nil)
		return Result{Outcome: OutcomeDuplicate, Kind: msg.Kind, SenderID: msg.SenderID}
	}

	r.sendAction(ctx, ActionMarkSeen, msg.SenderID)

	inbound := bus.InboundMessage{
		Channel:   channelName,
		SenderID:  msg.SenderID,
		MessageID: msg.MessageID,
		Kind:      string(msg.Kind),
		Content:   msg.Text,
		Metadata:  metadata,
	}
	r.log.Info("Received message", "sender_id", msg.SenderID, "kind", msg.Kind, "content", previewText(msg.Text), "delivery_id", deliveryID)
	r.publish(ctx, bus.EventMessageReceived, msg, deliveryID, nil)

	r.sendAction(ctx, ActionTypingOn, msg.SenderID)
	defer r.sendAction(context.WithoutCancel(ctx), ActionTypingOff, msg.SenderID)

	if err := r.invoke(ctx, inbound); err != nil {
		r.log.Error("Exception when trying to handle webhook for instagram message", "error", err, "sender_id", msg.SenderID, "kind", msg.Kind, "delivery_id", deliveryID)
		r.publish(ctx, bus.EventMessageFailed, msg, deliveryID, err)
		return Result{Outcome: OutcomeCallbackFailed, Kind: msg.Kind, SenderID: msg.SenderID, Err: err}
	}

	r.publish(ctx, bus.EventMessageHandled, msg, deliveryID, nil)
	return Result{Outcome: OutcomeHandled, Kind: msg.Kind, SenderID: msg.SenderID}
}

// OutputChannel returns the renderer used for replies.
func (r *Relay) OutputChannel() channel.OutputChannel {
	return r.renderer
}

func (r *Relay) invoke(ctx context.Context, inbound bus.InboundMessage) (err error) {
	if r.handler == nil {
		return nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("dialogue handler panic: %v", recovered)
		}
	}()

	return r.handler(ctx, inbound, r.renderer)
}

func (r *Relay) isDuplicate(ctx context.Context, msg Classified) bool {
	if r.dedup == nil || msg.MessageID == "" {
		return false
	}

	seen, err := r.dedup.Seen(ctx, channelName+":"+msg.MessageID)
	if err != nil {
		r.log.Warn("Dedup lookup failed, relaying message", "message_id", msg.MessageID, "error", err)
		return false
	}

	return seen
}

// sendAction is fire-and-forget: failures are logged and never retried.
func (r *Relay) sendAction(ctx context.Context, action SenderAction, recipientID string) {
	if err := r.transport.SendAction(ctx, action, recipientID); err != nil {
		r.log.Debug("Failed to send sender action", "action", action, "recipient_id", recipientID, "error", err)
	}
}

func (r *Relay) publish(ctx context.Context, eventType bus.EventType, msg Classified, deliveryID string, err error) {
	if r.events == nil {
		return
	}

	event := bus.Event{
		Type:       eventType,
		Channel:    channelName,
		SenderID:   msg.SenderID,
		DeliveryID: deliveryID,
		Kind:       string(msg.Kind),
	}
	if err != nil {
		event.Error = err.Error()
	}

	r.events.PublishEvent(ctx, event)
}
