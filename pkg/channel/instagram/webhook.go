package instagram

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	channelName         = "instagram"
	messagePreviewLimit = 240
	maxWebhookBodyBytes = 1 << 20

	signatureHeader       = "X-Hub-Signature"
	signatureHeaderSHA256 = "X-Hub-Signature-256"

	responseSuccess      = "success"
	responseNotValidated = "not validated"
	responseInvalidToken = "failure, invalid token"

	MetadataDeliveryID = "delivery_id"
	MetadataRemoteAddr = "remote_addr"
	MetadataUserAgent  = "user_agent"
)

// ErrMissingCredentials is returned when the instagram config block is absent.
var ErrMissingCredentials = errors.New("no credentials given for instagram: channels.instagram block is required")

// Credentials are read once at startup and shared read-only by all requests.
type Credentials struct {
	Verify          string
	Secret          string
	PageAccessToken string
}

// Adapter exposes the instagram webhook (handshake and delivery) over gin.
type Adapter struct {
	creds     Credentials
	transport Transport
	relayOpts []RelayOption
	events    *bus.MessageBus
	log       *slog.Logger
}

type AdapterOption func(*Adapter)

// WithTransport replaces the Graph API client, mainly for tests.
func WithTransport(t Transport) AdapterOption {
	return func(a *Adapter) { a.transport = t }
}

// WithRelayOptions forwards options to every relay the adapter builds.
func WithRelayOptions(opts ...RelayOption) AdapterOption {
	return func(a *Adapter) { a.relayOpts = append(a.relayOpts, opts...) }
}

// WithEventBus publishes webhook and relay events on mb.
func WithEventBus(mb *bus.MessageBus) AdapterOption {
	return func(a *Adapter) {
		a.events = mb
		a.relayOpts = append(a.relayOpts, WithEvents(mb))
	}
}

// NewAdapter validates instagram configuration and constructs an adapter.
// A nil cfg is fatal for startup and yields ErrMissingCredentials.
func NewAdapter(cfg *config.InstagramConfig, log *slog.Logger, opts ...AdapterOption) (*Adapter, error) {
	if cfg == nil {
		return nil, ErrMissingCredentials
	}

	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		creds: Credentials{
			Verify:          cfg.Verify,
			Secret:          cfg.Secret,
			PageAccessToken: cfg.PageAccessToken,
		},
		log: log.With("component", "channel.instagram"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.transport == nil {
		client, err := NewGraphClient(cfg.PageAccessToken, GraphOptions{
			BaseURL:    cfg.GraphBaseURL,
			APIVersion: cfg.APIVersion,
			Timeout:    time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.transport = client
	}

	return a, nil
}

// Name returns the channel identifier used in messages and logs.
func (a *Adapter) Name() string {
	return channelName
}

// OutputChannel returns a renderer for sends outside a webhook delivery.
func (a *Adapter) OutputChannel() channel.OutputChannel {
	return NewRenderer(a.transport, a.log)
}

// Register mounts the health probe, handshake and delivery routes.
func (a *Adapter) Register(router gin.IRouter, handler channel.Handler) {
	relay := NewRelay(a.transport, handler, a.log, a.relayOpts...)

	router.GET("/", a.handleHealth)
	router.GET("/webhook", a.handleHandshake)
	router.POST("/webhook", func(c *gin.Context) { a.handleDelivery(c, relay) })
}

func (a *Adapter) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleHandshake echoes hub.challenge only when hub.verify_token matches.
func (a *Adapter) handleHandshake(c *gin.Context) {
	token, ok := c.GetQuery("hub.verify_token")
	if !ok || token != a.creds.Verify {
		a.log.Warn("Invalid instagram verify token! Make sure this matches your webhook settings on the instagram app.")
		c.String(http.StatusOK, responseInvalidToken)
		return
	}

	c.String(http.StatusOK, c.Query("hub.challenge"))
}

func (a *Adapter) handleDelivery(c *gin.Context, relay *Relay) {
	deliveryID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		a.log.Warn("Failed to read webhook body", "error", err, "delivery_id", deliveryID)
		a.reject(c, deliveryID, "read body")
		return
	}

	if !VerifySignature(a.creds.Secret, body, signatureFromRequest(c.Request)) {
		a.log.Warn("Wrong secret! Make sure this matches the secret in your instagram app settings", "delivery_id", deliveryID)
		a.reject(c, deliveryID, "signature mismatch")
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		a.log.Warn("Dropping webhook with malformed JSON body", "error", err, "delivery_id", deliveryID)
		c.String(http.StatusOK, responseSuccess)
		return
	}

	metadata := map[string]any{
		MetadataDeliveryID: deliveryID,
		MetadataRemoteAddr: c.ClientIP(),
		MetadataUserAgent:  c.Request.UserAgent(),
	}
	result := relay.Handle(c.Request.Context(), event, metadata)
	a.log.Debug("Webhook processed", "delivery_id", deliveryID, "outcome", result.Outcome, "kind", result.Kind)

	c.String(http.StatusOK, responseSuccess)
}

func (a *Adapter) reject(c *gin.Context, deliveryID string, reason string) {
	if a.events != nil {
		a.events.PublishEvent(c.Request.Context(), bus.Event{
			Type:       bus.EventWebhookRejected,
			Channel:    channelName,
			DeliveryID: deliveryID,
			Error:      reason,
		})
	}

	c.String(http.StatusOK, responseNotValidated)
}

// signatureFromRequest prefers X-Hub-Signature and falls back to the sha256 header.
func signatureFromRequest(req *http.Request) string {
	if value := strings.TrimSpace(req.Header.Get(signatureHeader)); value != "" {
		return value
	}

	return strings.TrimSpace(req.Header.Get(signatureHeaderSHA256))
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
