package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"instarelay/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Redis shares the seen-set between connector replicas.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects using cfg.RedisAddr, which may be host:port or a redis:// URL.
func NewRedis(ctx context.Context, cfg config.DedupConfig, ttl time.Duration) (*Redis, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix}, nil
}

func redisOptions(cfg config.DedupConfig) (*redis.Options, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("dedup.redis_addr is required for the redis backend")
	}

	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse dedup.redis_addr: %w", err)
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// Seen uses SET NX so the first replica to record a key wins.
func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	stored, err := r.rdb.SetNX(ctx, r.prefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}

	return !stored, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
