package channel

import (
	"context"
	"fmt"
	"strings"
)

// Reply is one bot response in the REST bot wire shape.
type Reply struct {
	RecipientID  string           `json:"recipient_id,omitempty"`
	Text         string           `json:"text,omitempty"`
	Image        string           `json:"image,omitempty"`
	Attachment   string           `json:"attachment,omitempty"`
	Buttons      []map[string]any `json:"buttons,omitempty"`
	QuickReplies []map[string]any `json:"quick_replies,omitempty"`
	Elements     []map[string]any `json:"elements,omitempty"`
	Custom       map[string]any   `json:"custom,omitempty"`
}

// Dispatch sends reply through out. Text goes out as quick replies, buttons
// or plain text (first that applies); custom, image, attachment and elements
// follow in that order. The first failing send stops the dispatch.
func Dispatch(ctx context.Context, out OutputChannel, recipientID string, reply Reply) error {
	if id := strings.TrimSpace(reply.RecipientID); id != "" {
		recipientID = id
	}

	var steps []func() error
	switch {
	case len(reply.QuickReplies) > 0:
		steps = append(steps, func() error {
			return out.SendQuickReplies(ctx, recipientID, reply.Text, reply.QuickReplies)
		})
	case len(reply.Buttons) > 0:
		steps = append(steps, func() error {
			return out.SendTextWithButtons(ctx, recipientID, reply.Text, reply.Buttons)
		})
	case strings.TrimSpace(reply.Text) != "":
		steps = append(steps, func() error {
			return out.SendText(ctx, recipientID, reply.Text)
		})
	}

	if reply.Custom != nil {
		steps = append(steps, func() error { return out.SendCustomJSON(ctx, recipientID, reply.Custom) })
	}
	if reply.Image != "" {
		steps = append(steps, func() error { return out.SendImageURL(ctx, recipientID, reply.Image) })
	}
	if reply.Attachment != "" {
		steps = append(steps, func() error { return out.SendText(ctx, recipientID, "Attachment: "+reply.Attachment) })
	}
	if len(reply.Elements) > 0 {
		steps = append(steps, func() error { return out.SendElements(ctx, recipientID, reply.Elements) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("dispatch reply via %s: %w", out.Name(), err)
		}
	}

	return nil
}
