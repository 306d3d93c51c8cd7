package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"instarelay/pkg/channel/instagram"
	"instarelay/pkg/config"
	"instarelay/pkg/dedup"
	"instarelay/pkg/dialogue"

	"github.com/spf13/cobra"
)

var checkEngine bool

var verifyConfigCmd = &cobra.Command{
	Use:   "verify-config",
	Short: "Validate configuration without serving",
	Long:  "Loads the configuration, checks that instagram credentials are present and builds the dialogue engine and dedup store. With --ping the engine health endpoint is queried too.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return verifyConfig(cmd, cfg)
	},
}

func init() {
	verifyConfigCmd.Flags().BoolVar(&checkEngine, "ping", false, "query the dialogue engine health endpoint")
	rootCmd.AddCommand(verifyConfigCmd)
}

func verifyConfig(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	creds := cfg.Channels.Instagram
	if creds == nil {
		return instagram.ErrMissingCredentials
	}
	printSetting(out, "instagram.verify", mask(creds.Verify))
	printSetting(out, "instagram.secret", mask(creds.Secret))
	printSetting(out, "instagram.page-access-token", mask(creds.PageAccessToken))
	if creds.PageAccessToken == "" {
		return fmt.Errorf("instagram page-access-token is empty")
	}

	engine, err := dialogue.New(cfg.Dialogue, nil)
	if err != nil {
		return err
	}
	printSetting(out, "dialogue", engine.Name())

	if checkEngine {
		ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
		defer cancel()
		if err := engine.Health(ctx); err != nil {
			return fmt.Errorf("dialogue engine health check failed: %w", err)
		}
		printSetting(out, "dialogue.health", "ok")
	}

	store, err := dedup.New(commandContext(cmd), cfg.Dedup)
	if err != nil {
		return err
	}
	if store != nil {
		_ = store.Close()
	}
	printSetting(out, "dedup", dedupBackend(cfg.Dedup))

	fmt.Fprintln(out, "configuration ok")
	return nil
}

func printSetting(out io.Writer, key string, value string) {
	fmt.Fprintf(out, "%-30s %s\n", key, value)
}

func mask(value string) string {
	switch {
	case value == "":
		return "(empty)"
	case len(value) <= 4:
		return "****"
	default:
		return value[:2] + "****" + value[len(value)-2:]
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
