package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath        = "INSTARELAY_CONFIG"
	envVerifyToken       = "INSTAGRAM_VERIFY_TOKEN"
	envAppSecret         = "INSTAGRAM_APP_SECRET"
	envPageAccessToken   = "INSTAGRAM_PAGE_ACCESS_TOKEN"
	envDialogueURL       = "INSTARELAY_DIALOGUE_URL"
	envDedupRedisAddress = "INSTARELAY_REDIS_ADDR"
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Dialogue DialogueConfig `json:"dialogue" yaml:"dialogue"`
	Dedup    DedupConfig    `json:"dedup,omitempty" yaml:"dedup,omitempty"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
//
// Instagram is a pointer so a missing block can be told apart from an empty one.
type ChannelsConfig struct {
	Instagram *InstagramConfig `json:"instagram,omitempty" yaml:"instagram,omitempty"`
}

// InstagramConfig holds the app credentials and Graph API settings.
type InstagramConfig struct {
	Verify                string `json:"verify" yaml:"verify"`
	Secret                string `json:"secret" yaml:"secret"`
	PageAccessToken       string `json:"page-access-token" yaml:"page-access-token"`
	APIVersion            string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	GraphBaseURL          string `json:"graph_base_url,omitempty" yaml:"graph_base_url,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
}

// DialogueConfig selects the engine that decides what to reply.
type DialogueConfig struct {
	Type           string `json:"type" yaml:"type"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	HealthURL      string `json:"health_url,omitempty" yaml:"health_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// DedupConfig controls dropping of redelivered webhook messages.
type DedupConfig struct {
	Backend       string `json:"backend,omitempty" yaml:"backend,omitempty"`
	TTLSeconds    int    `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	KeyPrefix     string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// GatewayConfig configures HTTP bind settings.
type GatewayConfig struct {
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	BasePath       string   `json:"base_path,omitempty" yaml:"base_path,omitempty"`
	EventsEnabled  bool     `json:"events_enabled,omitempty" yaml:"events_enabled,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// LoadConfig resolves the config file, unmarshals it, applies environment
// overrides and resolves keyring references.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile loads one config file. The format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveSecretRefs(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
//
// Any credential variable creates the instagram block when the file has none.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	overrides := map[string]func(*InstagramConfig, string){
		envVerifyToken:     func(c *InstagramConfig, v string) { c.Verify = v },
		envAppSecret:       func(c *InstagramConfig, v string) { c.Secret = v },
		envPageAccessToken: func(c *InstagramConfig, v string) { c.PageAccessToken = v },
	}
	for key, apply := range overrides {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		if cfg.Channels.Instagram == nil {
			cfg.Channels.Instagram = &InstagramConfig{}
		}
		apply(cfg.Channels.Instagram, value)
	}

	if value := strings.TrimSpace(os.Getenv(envDialogueURL)); value != "" {
		cfg.Dialogue.URL = value
	}

	if value := strings.TrimSpace(os.Getenv(envDedupRedisAddress)); value != "" {
		cfg.Dedup.RedisAddr = value
	}
}

// findConfigPath resolves the active config file location.
//
// Precedence is INSTARELAY_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config file not found (checked %s)", strings.Join(candidates, ", "))
}
