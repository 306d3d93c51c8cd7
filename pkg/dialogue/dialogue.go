package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/config"
)

const (
	TypeREST = "rest"
	TypeEcho = "echo"
)

// Engine decides what to reply to one inbound message and writes the
// replies to out.
type Engine interface {
	Name() string
	Health(ctx context.Context) error
	Handle(ctx context.Context, msg bus.InboundMessage, out channel.OutputChannel) error
}

func New(cfg config.DialogueConfig, log *slog.Logger) (Engine, error) {
	engineType := strings.ToLower(strings.TrimSpace(cfg.Type))
	if engineType == "" {
		engineType = TypeREST
	}

	if log == nil {
		log = slog.Default()
	}
	log.With("component", "dialogue.factory").Debug("Resolving dialogue engine", "type", engineType)

	switch engineType {
	case TypeREST:
		engine, err := NewREST(cfg, log)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case TypeEcho:
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialogue engine: %s", engineType)
	}
}

// Echo replies with the received content. Useful for wiring checks.
type Echo struct{}

func (Echo) Name() string { return TypeEcho }

func (Echo) Health(context.Context) error { return nil }

func (Echo) Handle(ctx context.Context, msg bus.InboundMessage, out channel.OutputChannel) error {
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	return out.SendText(ctx, msg.SenderID, msg.Content)
}
