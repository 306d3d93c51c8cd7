package instagram

import "strings"

// Event is the webhook envelope delivered by the platform.
type Event struct {
	Object string  `json:"object,omitempty"`
	Entry  []Entry `json:"entry"`
}

// Entry groups messaging items for one account.
type Entry struct {
	ID        string       `json:"id,omitempty"`
	Time      int64        `json:"time,omitempty"`
	Messaging []RawMessage `json:"messaging"`
}

// RawMessage is one messaging item. Which fields are set decides its kind.
type RawMessage struct {
	Sender    *Party    `json:"sender,omitempty"`
	Recipient *Party    `json:"recipient,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

// Party identifies a sender or recipient by its scoped id.
type Party struct {
	ID string `json:"id"`
}

// Message carries user text, a quick-reply selection or attachments.
// Text is a pointer because an empty text field still marks a text message.
type Message struct {
	MID         string       `json:"mid,omitempty"`
	Text        *string      `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type QuickReply struct {
	Payload string `json:"payload"`
}

type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

type AttachmentPayload struct {
	URL string `json:"url,omitempty"`
}

type Postback struct {
	MID     string `json:"mid,omitempty"`
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Kind is the closed set of classifications for a messaging item.
type Kind string

const (
	KindQuickReply  Kind = "quick_reply"
	KindUserText    Kind = "text"
	KindAttachment  Kind = "attachment"
	KindPostback    Kind = "postback"
	KindUnsupported Kind = "unsupported"
)

var mediaAttachmentTypes = map[string]struct{}{
	"audio": {},
	"image": {},
	"video": {},
	"file":  {},
}

// Classified is the normalized form of one messaging item.
type Classified struct {
	Kind           Kind
	AttachmentType string
	SenderID       string
	MessageID      string
	Text           string
}

// Supported reports whether the item should reach the dialogue engine.
func (c Classified) Supported() bool {
	return c.Kind != KindUnsupported
}

// Classify normalizes one messaging item. The first matching rule wins:
// quick reply, user text, media attachment, postback. Postbacks are only
// considered for items without a message object.
func Classify(raw RawMessage) Classified {
	result := Classified{Kind: KindUnsupported, SenderID: senderID(raw)}

	if msg := raw.Message; msg != nil {
		result.MessageID = msg.MID

		switch {
		case msg.QuickReply != nil && msg.QuickReply.Payload != "":
			result.Kind = KindQuickReply
			result.Text = msg.QuickReply.Payload
		case msg.Text != nil && !msg.IsEcho:
			result.Kind = KindUserText
			result.Text = *msg.Text
		case len(msg.Attachments) > 0 && isMediaAttachment(msg.Attachments[0].Type):
			result.Kind = KindAttachment
			result.AttachmentType = msg.Attachments[0].Type
			result.Text = msg.Attachments[0].Payload.URL
		}

		return result
	}

	if pb := raw.Postback; pb != nil && pb.Payload != "" {
		result.Kind = KindPostback
		result.MessageID = pb.MID
		result.Text = pb.Payload
	}

	return result
}

// FirstHandled returns the first messaging item carrying a message or a
// postback. Later items of the same delivery are never processed.
func FirstHandled(event Event) (RawMessage, bool) {
	for _, entry := range event.Entry {
		for _, item := range entry.Messaging {
			if item.Message != nil || item.Postback != nil {
				return item, true
			}
		}
	}

	return RawMessage{}, false
}

func senderID(raw RawMessage) string {
	if raw.Sender == nil {
		return ""
	}

	return raw.Sender.ID
}

func isMediaAttachment(kind string) bool {
	_, ok := mediaAttachmentTypes[strings.ToLower(kind)]
	return ok
}
