package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/config"
	"instarelay/pkg/dialogue"

	"github.com/gin-gonic/gin"
)

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 8080
	engineCheckInterval = 30 * time.Second
)

// Service serves the channel webhooks plus health, readiness and event routes.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	engine   dialogue.Engine
	convs    *conversationManager
	adapters []channel.Adapter
	events   *bus.MessageBus
	router   *gin.Engine

	mu             sync.RWMutex
	startedAt      time.Time
	engineLastOKAt time.Time
	engineLastErr  string
}

type statusResponse struct {
	Status         string   `json:"status"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	Engine         string   `json:"engine"`
	EngineLastOKAt string   `json:"engine_last_ok_at,omitempty"`
	EngineLastErr  string   `json:"engine_last_error,omitempty"`
	Channels       []string `json:"channels"`
}

func NewService(cfg *config.Config, engine dialogue.Engine, adapters []channel.Adapter, events *bus.MessageBus, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if engine == nil {
		return nil, errors.New("dialogue engine is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		log:      log.With("component", "gateway.service"),
		engine:   engine,
		convs:    newConversationManager(engine),
		adapters: adapters,
		events:   events,
	}
	s.router = s.buildRouter()

	return s, nil
}

// Handler exposes the routes without starting a listener.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	router.GET("/readyz", s.handleReady)
	if s.cfg.Gateway.EventsEnabled && s.events != nil {
		router.GET("/events", s.handleEvents)
	}

	base := router.Group(strings.TrimRight(s.cfg.Gateway.BasePath, "/"))
	for _, adapter := range s.adapters {
		adapter.Register(base, s.handleInbound)
	}

	return router
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkEngineHealth(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(engineCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.checkEngineHealth(ctx); err != nil {
					s.log.Warn("Dialogue engine unhealthy", "engine", s.engine.Name(), "error", err)
				}
			}
		}
	}()

	server := &http.Server{
		Addr:              s.address(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway server started", "address", server.Addr, "base_path", s.cfg.Gateway.BasePath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start gateway server: %w", err)
	}

	return nil
}

func (s *Service) address() string {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultPort
	}

	return host + ":" + strconv.Itoa(port)
}

func (s *Service) handleInbound(ctx context.Context, msg bus.InboundMessage, out channel.OutputChannel) error {
	return s.convs.Handle(ctx, msg, out)
}

func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Service) handleHealth(c *gin.Context) {
	s.respondStatus(c, http.StatusOK, "ok")
}

func (s *Service) handleReady(c *gin.Context) {
	if !s.isReady() {
		s.respondStatus(c, http.StatusServiceUnavailable, "not_ready")
		return
	}

	s.respondStatus(c, http.StatusOK, "ready")
}

func (s *Service) respondStatus(c *gin.Context, statusCode int, status string) {
	c.JSON(statusCode, s.currentStatus(status))
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	lastOK := ""
	if !s.engineLastOKAt.IsZero() {
		lastOK = s.engineLastOKAt.Format(time.RFC3339)
	}

	channels := make([]string, 0, len(s.adapters))
	for _, adapter := range s.adapters {
		channels = append(channels, adapter.Name())
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		Engine:         s.engine.Name(),
		EngineLastOKAt: lastOK,
		EngineLastErr:  s.engineLastErr,
		Channels:       channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.adapters) == 0 {
		return false
	}

	return !s.engineLastOKAt.IsZero() && s.engineLastErr == ""
}

func (s *Service) checkEngineHealth(ctx context.Context) error {
	if err := s.engine.Health(ctx); err != nil {
		s.mu.Lock()
		s.engineLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("dialogue engine health check failed: %w", err)
	}

	s.mu.Lock()
	s.engineLastErr = ""
	s.engineLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}
