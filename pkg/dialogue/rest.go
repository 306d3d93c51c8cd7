package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/config"
)

const maxErrorBodyBytes = 2048

// REST forwards messages to a bot server speaking the REST webhook protocol:
// POST {sender, message, metadata} answered by a JSON list of replies.
type REST struct {
	url        string
	healthURL  string
	httpClient *http.Client
	log        *slog.Logger
}

type restRequest struct {
	Sender       string         `json:"sender"`
	Message      string         `json:"message"`
	InputChannel string         `json:"input_channel,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewREST builds the engine. A zero timeout leaves waiting to the bot server.
func NewREST(cfg config.DialogueConfig, log *slog.Logger) (*REST, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("dialogue.url is required for the rest engine")
	}

	if log == nil {
		log = slog.Default()
	}

	return &REST{
		url:        endpoint,
		healthURL:  strings.TrimSpace(cfg.HealthURL),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:        log.With("component", "dialogue.rest"),
	}, nil
}

func (r *REST) Name() string { return TypeREST }

// Health probes health_url when configured.
func (r *REST) Health(ctx context.Context) error {
	if r.healthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.healthURL, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dialogue health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("dialogue health check: status %d", resp.StatusCode)
	}

	return nil
}

// Handle posts msg to the bot server and dispatches every reply in order.
func (r *REST) Handle(ctx context.Context, msg bus.InboundMessage, out channel.OutputChannel) error {
	replies, err := r.exchange(ctx, msg)
	if err != nil {
		return err
	}

	r.log.Debug("Dispatching replies", "sender_id", msg.SenderID, "replies", len(replies))
	for _, reply := range replies {
		if err := channel.Dispatch(ctx, out, msg.SenderID, reply); err != nil {
			return err
		}
	}

	return nil
}

func (r *REST) exchange(ctx context.Context, msg bus.InboundMessage) ([]channel.Reply, error) {
	body, err := json.Marshal(restRequest{
		Sender:       msg.SenderID,
		Message:      msg.Content,
		InputChannel: msg.Channel,
		Metadata:     msg.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode dialogue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build dialogue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call dialogue engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("dialogue engine status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var replies []channel.Reply
	if err := json.NewDecoder(resp.Body).Decode(&replies); err != nil {
		return nil, fmt.Errorf("decode dialogue replies: %w", err)
	}

	return replies, nil
}
