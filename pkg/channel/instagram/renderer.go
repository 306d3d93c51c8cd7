package instagram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	maxTemplateButtons = 3
	paragraphSeparator = "\n\n"
	defaultButtonType  = "postback"
)

// ValidationError reports a reply that cannot be rendered because a
// required field is missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("instagram quick replies must define a %q field", e.Field)
}

// Renderer converts abstract replies into send API payloads and hands them
// to the transport one at a time.
type Renderer struct {
	transport Transport
	log       *slog.Logger
}

func NewRenderer(transport Transport, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}

	return &Renderer{
		transport: transport,
		log:       log.With("component", "channel.instagram.renderer"),
	}
}

func (r *Renderer) Name() string {
	return channelName
}

// SendText sends one message per paragraph, in order, waiting for each send
// before issuing the next.
func (r *Renderer) SendText(ctx context.Context, recipientID string, text string) error {
	for _, part := range strings.Split(strings.TrimSpace(text), paragraphSeparator) {
		if part == "" {
			continue
		}
		if err := r.send(ctx, recipientID, map[string]any{"text": part}); err != nil {
			return err
		}
	}

	return nil
}

func (r *Renderer) SendImageURL(ctx context.Context, recipientID string, imageURL string) error {
	return r.send(ctx, recipientID, map[string]any{
		"attachment": map[string]any{
			"type":    "image",
			"payload": map[string]any{"url": imageURL},
		},
	})
}

// SendTextWithButtons renders a one-element generic template. More buttons
// than the platform shows are dropped and the text is sent on its own.
func (r *Renderer) SendTextWithButtons(ctx context.Context, recipientID string, text string, buttons []map[string]any) error {
	if len(buttons) > maxTemplateButtons {
		r.log.Warn("instagram API currently allows only up to 3 buttons. If you add more, all will be ignored.", "buttons", len(buttons), "recipient_id", recipientID)
		return r.SendText(ctx, recipientID, text)
	}

	return r.send(ctx, recipientID, genericTemplate([]map[string]any{{
		"title":   text,
		"buttons": withButtonTypes(buttons),
	}}))
}

// SendQuickReplies validates every option before sending anything.
func (r *Renderer) SendQuickReplies(ctx context.Context, recipientID string, text string, options []map[string]any) error {
	quickReplies, err := convertQuickReplies(options)
	if err != nil {
		return err
	}

	return r.send(ctx, recipientID, map[string]any{
		"text":          text,
		"quick_replies": quickReplies,
	})
}

// SendElements sends all elements as one generic template. Buttons without a
// type become postbacks; there is no button cap for elements.
func (r *Renderer) SendElements(ctx context.Context, recipientID string, elements []map[string]any) error {
	rendered := make([]map[string]any, 0, len(elements))
	for _, element := range elements {
		next := cloneMap(element)
		if buttons, ok := element["buttons"]; ok {
			next["buttons"] = withButtonTypes(buttonList(buttons))
		}
		rendered = append(rendered, next)
	}

	return r.send(ctx, recipientID, genericTemplate(rendered))
}

// SendCustomJSON sends payload verbatim, minus an embedded "sender" object
// whose id, when set, replaces recipientID.
func (r *Renderer) SendCustomJSON(ctx context.Context, recipientID string, payload map[string]any) error {
	message := cloneMap(payload)

	if sender, ok := message["sender"]; ok {
		delete(message, "sender")
		if fields, ok := sender.(map[string]any); ok {
			if id, ok := fields["id"].(string); ok && id != "" {
				recipientID = id
			}
		}
	}

	return r.send(ctx, recipientID, message)
}

func (r *Renderer) send(ctx context.Context, recipientID string, payload map[string]any) error {
	if err := r.transport.Send(ctx, payload, recipientID, MessagingTypeResponse); err != nil {
		return fmt.Errorf("send to %s: %w", recipientID, err)
	}

	return nil
}

func genericTemplate(elements []map[string]any) map[string]any {
	return map[string]any{
		"attachment": map[string]any{
			"type": "template",
			"payload": map[string]any{
				"template_type": "generic",
				"elements":      elements,
			},
		},
	}
}

func convertQuickReplies(options []map[string]any) ([]map[string]any, error) {
	converted := make([]map[string]any, 0, len(options))
	for _, option := range options {
		title, ok := option["title"]
		if !ok {
			return nil, &ValidationError{Field: "title"}
		}
		payload, ok := option["payload"]
		if !ok {
			return nil, &ValidationError{Field: "payload"}
		}

		contentType := "text"
		if value, ok := option["content_type"].(string); ok && value != "" {
			contentType = value
		}

		converted = append(converted, map[string]any{
			"content_type": contentType,
			"title":        title,
			"payload":      payload,
		})
	}

	return converted, nil
}

// withButtonTypes returns copies of buttons with a missing "type" set to postback.
func withButtonTypes(buttons []map[string]any) []map[string]any {
	typed := make([]map[string]any, 0, len(buttons))
	for _, button := range buttons {
		next := cloneMap(button)
		if _, ok := next["type"]; !ok {
			next["type"] = defaultButtonType
		}
		typed = append(typed, next)
	}

	return typed
}

// buttonList accepts buttons as built in Go or as decoded from JSON.
func buttonList(value any) []map[string]any {
	switch buttons := value.(type) {
	case []map[string]any:
		return buttons
	case []any:
		list := make([]map[string]any, 0, len(buttons))
		for _, item := range buttons {
			if button, ok := item.(map[string]any); ok {
				list = append(list, button)
			}
		}
		return list
	default:
		return nil
	}
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for key, value := range src {
		dst[key] = value
	}

	return dst
}
