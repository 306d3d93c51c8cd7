package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/channel/instagram"
	"instarelay/pkg/config"
	"instarelay/pkg/dedup"
	"instarelay/pkg/dialogue"
	"instarelay/pkg/gateway"
	"instarelay/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook relay",
	Long:  "Serves the Instagram webhook together with health, readiness and event stream endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := dedup.New(runCtx, cfg.Dedup)
		if err != nil {
			return fmt.Errorf("failed to initialize dedup store: %w", err)
		}
		if store != nil {
			defer store.Close()
		}

		events := bus.NewMessageBus()
		defer events.Close()

		adapters, err := enabledAdapters(cfg, store, events, log)
		if err != nil {
			log.Error("Channel configuration invalid", "error", err)
			return err
		}

		engine, err := dialogue.New(cfg.Dialogue, log)
		if err != nil {
			return fmt.Errorf("failed to initialize dialogue engine: %w", err)
		}

		svc, err := gateway.NewService(cfg, engine, adapters, events, log)
		if err != nil {
			return fmt.Errorf("failed to initialize gateway service: %w", err)
		}

		log.Info("Relay started", "channels", enabledChannelNames(adapters), "engine", engine.Name(), "dedup", dedupBackend(cfg.Dedup))
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Relay runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, store dedup.Store, events *bus.MessageBus, log *slog.Logger) ([]channel.Adapter, error) {
	opts := []instagram.AdapterOption{instagram.WithEventBus(events)}
	if store != nil {
		opts = append(opts, instagram.WithRelayOptions(instagram.WithDedup(store)))
	}

	adapter, err := instagram.NewAdapter(cfg.Channels.Instagram, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure instagram channel: %w", err)
	}

	return []channel.Adapter{adapter}, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

func dedupBackend(cfg config.DedupConfig) string {
	if backend := strings.TrimSpace(cfg.Backend); backend != "" {
		return backend
	}
	return dedup.BackendNone
}
