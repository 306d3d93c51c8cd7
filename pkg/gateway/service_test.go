package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/config"

	"github.com/gin-gonic/gin"
)

type stubEngine struct {
	healthErr error
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Health(context.Context) error { return e.healthErr }

func (e *stubEngine) Handle(context.Context, bus.InboundMessage, channel.OutputChannel) error {
	return nil
}

type stubAdapter struct{}

func (stubAdapter) Name() string { return "stub" }

func (stubAdapter) Register(router gin.IRouter, _ channel.Handler) {
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := NewService(nil, &stubEngine{}, []channel.Adapter{stubAdapter{}}, nil, nil); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := NewService(cfg, nil, []channel.Adapter{stubAdapter{}}, nil, nil); err == nil {
		t.Fatal("expected error without engine")
	}
	if _, err := NewService(cfg, &stubEngine{}, nil, nil, nil); err == nil {
		t.Fatal("expected error without adapters")
	}
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc, err := NewService(&config.Config{}, engine, []channel.Adapter{stubAdapter{}}, nil, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	if svc.isReady() {
		t.Fatal("expected not ready before the first engine health check")
	}

	if err := svc.checkEngineHealth(context.Background()); err != nil {
		t.Fatalf("checkEngineHealth error: %v", err)
	}
	if !svc.isReady() {
		t.Fatal("expected ready with registered adapter and healthy engine")
	}

	engine.healthErr = errors.New("boom")
	if err := svc.checkEngineHealth(context.Background()); err == nil {
		t.Fatal("expected health check error")
	}
	if svc.isReady() {
		t.Fatal("expected not ready when engine has error")
	}
}

func TestAddressDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gateway config.GatewayConfig
		want    string
	}{
		{name: "defaults", want: "0.0.0.0:8080"},
		{name: "explicit", gateway: config.GatewayConfig{Host: "127.0.0.1", Port: 8080}, want: "127.0.0.1:8080"},
		{name: "blank host", gateway: config.GatewayConfig{Host: "  ", Port: 9000}, want: "0.0.0.0:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{cfg: &config.Config{Gateway: tt.gateway}}
			if got := svc.address(); got != tt.want {
				t.Fatalf("address = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	svc := &Service{cfg: &config.Config{Gateway: config.GatewayConfig{AllowedOrigins: []string{"https://ops.example.com"}}}}

	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "https://ops.example.com", want: true},
		{origin: "https://evil.example.com", want: false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := svc.checkOrigin(req); got != tt.want {
			t.Fatalf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	open := &Service{cfg: &config.Config{}}
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	if !open.checkOrigin(req) {
		t.Fatal("expected any origin to pass without an allow list")
	}
}

func TestHealthAndReadinessRoutes(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&config.Config{Gateway: config.GatewayConfig{BasePath: "/webhooks/stub/"}}, &stubEngine{}, []channel.Adapter{stubAdapter{}}, nil, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	if err := svc.checkEngineHealth(context.Background()); err != nil {
		t.Fatalf("checkEngineHealth error: %v", err)
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "ready" || status.Engine != "stub" || len(status.Channels) != 1 {
		t.Fatalf("status = %+v", status)
	}
	if status.EngineLastOKAt == "" {
		t.Fatal("expected engine_last_ok_at")
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/stub/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("adapter route = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("events status = %d, want %d when disabled", rec.Code, http.StatusNotFound)
	}
}

func TestRunFailsWhenEngineUnhealthy(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&config.Config{}, &stubEngine{healthErr: errors.New("down")}, []channel.Adapter{stubAdapter{}}, nil, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := svc.Run(ctx); err == nil {
		t.Fatal("expected Run to fail on unhealthy engine")
	}
}
