package gateway

import (
	"net/http"
	"time"

	"instarelay/pkg/bus"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer    = 32
	eventWriteWait = 5 * time.Second
)

type streamMessage struct {
	Type         string     `json:"type"`
	SubscriberID string     `json:"subscriber_id,omitempty"`
	Event        *bus.Event `json:"event,omitempty"`
}

func (s *Service) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Gateway.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.cfg.Gateway.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}

	return false
}

// handleEvents streams relay events to a websocket client until either side
// goes away. Client frames are read only to notice the close.
func (s *Service) handleEvents(c *gin.Context) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subscriberID := uuid.NewString()
	log := s.log.With("subscriber_id", subscriberID)

	if err := conn.WriteJSON(streamMessage{Type: "connected", SubscriberID: subscriberID}); err != nil {
		log.Debug("Event stream hello failed", "error", err)
		return
	}

	ctx := c.Request.Context()
	events, unsubscribe := s.events.SubscribeEvents(ctx, eventBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("Event stream closed unexpectedly", "error", err)
				}
				return
			}
		}
	}()

	log.Info("Event stream subscriber connected")
	defer log.Info("Event stream subscriber disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(eventWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(streamMessage{Type: "event", Event: &event}); err != nil {
				log.Debug("Event stream write failed", "error", err)
				return
			}
		}
	}
}
