// Package dedup remembers recently relayed message ids so platform
// redeliveries are dropped instead of reaching the dialogue engine twice.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"instarelay/pkg/config"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"

	defaultTTL       = 10 * time.Minute
	defaultKeyPrefix = "instarelay:dedup:"
)

// Store reports whether key was seen within the TTL, recording it if not.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Close() error
}

// New builds the store selected by cfg.Backend. It returns nil for "none".
func New(ctx context.Context, cfg config.DedupConfig) (Store, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultTTL
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemory(ttl), nil
	case BackendRedis:
		store, err := NewRedis(ctx, cfg, ttl)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported dedup backend %q", cfg.Backend)
	}
}
