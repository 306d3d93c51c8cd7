package channel

import (
	"context"

	"instarelay/pkg/bus"

	"github.com/gin-gonic/gin"
)

// Handler passes one inbound conversation message to the dialogue engine.
// Replies are written to out; a returned error is logged by the caller.
type Handler func(ctx context.Context, msg bus.InboundMessage, out OutputChannel) error

// OutputChannel renders abstract replies into one platform's send format.
type OutputChannel interface {
	Name() string
	SendText(ctx context.Context, recipientID string, text string) error
	SendImageURL(ctx context.Context, recipientID string, imageURL string) error
	SendTextWithButtons(ctx context.Context, recipientID string, text string, buttons []map[string]any) error
	SendQuickReplies(ctx context.Context, recipientID string, text string, options []map[string]any) error
	SendElements(ctx context.Context, recipientID string, elements []map[string]any) error
	SendCustomJSON(ctx context.Context, recipientID string, payload map[string]any) error
}

// Adapter bridges one webhook-based platform into instarelay.
type Adapter interface {
	Name() string
	Register(router gin.IRouter, handler Handler)
}
