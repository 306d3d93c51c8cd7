package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"instarelay/pkg/bus"
	"instarelay/pkg/config"

	"github.com/stretchr/testify/require"
)

type call struct {
	Method      string
	RecipientID string
	Text        string
	Count       int
}

type recordingOutput struct {
	calls []call
}

func (r *recordingOutput) Name() string { return "recording" }

func (r *recordingOutput) SendText(_ context.Context, recipientID string, text string) error {
	r.calls = append(r.calls, call{Method: "text", RecipientID: recipientID, Text: text})
	return nil
}

func (r *recordingOutput) SendImageURL(_ context.Context, recipientID string, imageURL string) error {
	r.calls = append(r.calls, call{Method: "image", RecipientID: recipientID, Text: imageURL})
	return nil
}

func (r *recordingOutput) SendTextWithButtons(_ context.Context, recipientID string, text string, buttons []map[string]any) error {
	r.calls = append(r.calls, call{Method: "buttons", RecipientID: recipientID, Text: text, Count: len(buttons)})
	return nil
}

func (r *recordingOutput) SendQuickReplies(_ context.Context, recipientID string, text string, options []map[string]any) error {
	r.calls = append(r.calls, call{Method: "quick_replies", RecipientID: recipientID, Text: text, Count: len(options)})
	return nil
}

func (r *recordingOutput) SendElements(_ context.Context, recipientID string, elements []map[string]any) error {
	r.calls = append(r.calls, call{Method: "elements", RecipientID: recipientID, Count: len(elements)})
	return nil
}

func (r *recordingOutput) SendCustomJSON(_ context.Context, recipientID string, payload map[string]any) error {
	r.calls = append(r.calls, call{Method: "custom", RecipientID: recipientID, Count: len(payload)})
	return nil
}

func TestNewSelectsEngine(t *testing.T) {
	engine, err := New(config.DialogueConfig{Type: "echo"}, nil)
	require.NoError(t, err)
	require.Equal(t, TypeEcho, engine.Name())

	engine, err = New(config.DialogueConfig{URL: "http://bot/webhooks/rest/webhook"}, nil)
	require.NoError(t, err)
	require.Equal(t, TypeREST, engine.Name())

	_, err = New(config.DialogueConfig{Type: "rest"}, nil)
	require.Error(t, err)

	_, err = New(config.DialogueConfig{Type: "llm"}, nil)
	require.Error(t, err)
}

func TestEchoRepliesWithContent(t *testing.T) {
	out := &recordingOutput{}

	require.NoError(t, Echo{}.Handle(context.Background(), bus.InboundMessage{SenderID: "u1", Content: "hi"}, out))
	require.NoError(t, Echo{}.Handle(context.Background(), bus.InboundMessage{SenderID: "u1", Content: "  "}, out))

	require.Equal(t, []call{{Method: "text", RecipientID: "u1", Text: "hi"}}, out.calls)
}

func TestRESTForwardsAndDispatchesReplies(t *testing.T) {
	var got restRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
		  {"recipient_id":"u1","text":"Hello\n\nWorld"},
		  {"recipient_id":"u1","text":"Pick","buttons":[{"title":"A","payload":"/a"},{"title":"B","payload":"/b"}]},
		  {"recipient_id":"u1","image":"https://cdn/cat.png"},
		  {"recipient_id":"u1","elements":[{"title":"Card","buttons":[{"title":"Go"}]}]},
		  {"recipient_id":"u1","custom":{"sender":{"id":"u2"},"text":"direct"}}
		]`))
	}))
	t.Cleanup(server.Close)

	engine, err := NewREST(config.DialogueConfig{URL: server.URL}, nil)
	require.NoError(t, err)

	out := &recordingOutput{}
	msg := bus.InboundMessage{Channel: "instagram", SenderID: "u1", Content: "hi", Metadata: map[string]any{"delivery_id": "d1"}}
	require.NoError(t, engine.Handle(context.Background(), msg, out))

	require.Equal(t, "u1", got.Sender)
	require.Equal(t, "hi", got.Message)
	require.Equal(t, "instagram", got.InputChannel)
	require.Equal(t, "d1", got.Metadata["delivery_id"])

	require.Equal(t, []call{
		{Method: "text", RecipientID: "u1", Text: "Hello\n\nWorld"},
		{Method: "buttons", RecipientID: "u1", Text: "Pick", Count: 2},
		{Method: "image", RecipientID: "u1", Text: "https://cdn/cat.png"},
		{Method: "elements", RecipientID: "u1", Count: 1},
		{Method: "custom", RecipientID: "u1", Count: 2},
	}, out.calls)
}

func TestRESTReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	engine, err := NewREST(config.DialogueConfig{URL: server.URL, HealthURL: server.URL}, nil)
	require.NoError(t, err)

	out := &recordingOutput{}
	err = engine.Handle(context.Background(), bus.InboundMessage{SenderID: "u1", Content: "hi"}, out)
	require.ErrorContains(t, err, "status 503")
	require.Empty(t, out.calls)

	require.Error(t, engine.Health(context.Background()))
}

func TestRESTHealthWithoutURL(t *testing.T) {
	engine, err := NewREST(config.DialogueConfig{URL: "http://127.0.0.1:1/webhook"}, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Health(context.Background()))
}
