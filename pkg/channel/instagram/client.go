package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGraphBaseURL   = "https://graph.facebook.com"
	defaultAPIVersion     = "v19.0"
	defaultRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 4096

	MessagingTypeResponse = "RESPONSE"
)

// SenderAction is an ephemeral UI indicator shown to the user.
type SenderAction string

const (
	ActionMarkSeen  SenderAction = "mark_seen"
	ActionTypingOn  SenderAction = "typing_on"
	ActionTypingOff SenderAction = "typing_off"
)

// Transport delivers rendered payloads to the platform send API.
type Transport interface {
	Send(ctx context.Context, payload map[string]any, recipientID string, messagingType string) error
	SendAction(ctx context.Context, action SenderAction, recipientID string) error
}

// APIError is a non-2xx answer from the send API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("graph api status %d: %s", e.StatusCode, e.Body)
}

// GraphClient posts to the Graph API /me/messages endpoint. It never retries.
type GraphClient struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// GraphOptions tunes GraphClient; zero values fall back to defaults.
type GraphOptions struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

func NewGraphClient(accessToken string, opts GraphOptions) (*GraphClient, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("page access token is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	version := strings.Trim(strings.TrimSpace(opts.APIVersion), "/")
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &GraphClient{
		endpoint:    baseURL + "/" + version + "/me/messages",
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Send delivers one message payload to recipientID.
func (c *GraphClient) Send(ctx context.Context, payload map[string]any, recipientID string, messagingType string) error {
	if messagingType == "" {
		messagingType = MessagingTypeResponse
	}

	return c.post(ctx, map[string]any{
		"messaging_type": messagingType,
		"recipient":      map[string]any{"id": recipientID},
		"message":        payload,
	})
}

// SendAction delivers a sender action (seen, typing) to recipientID.
func (c *GraphClient) SendAction(ctx context.Context, action SenderAction, recipientID string) error {
	return c.post(ctx, map[string]any{
		"recipient":     map[string]any{"id": recipientID},
		"sender_action": string(action),
	})
}

func (c *GraphClient) post(ctx context.Context, body map[string]any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode graph request: %w", err)
	}

	endpoint := c.endpoint + "?" + url.Values{"access_token": {c.accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
