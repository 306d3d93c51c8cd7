package dedup

import (
	"context"
	"testing"
	"time"

	"instarelay/pkg/config"
)

func TestMemorySeen(t *testing.T) {
	m := NewMemory(time.Minute)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	if seen, _ := m.Seen(ctx, "instagram:m1"); seen {
		t.Fatal("first lookup reported seen")
	}
	if seen, _ := m.Seen(ctx, "instagram:m1"); !seen {
		t.Fatal("second lookup not reported seen")
	}
	if seen, _ := m.Seen(ctx, "instagram:m2"); seen {
		t.Fatal("different key reported seen")
	}
	if seen, _ := m.Seen(ctx, ""); seen {
		t.Fatal("empty key reported seen")
	}
}

func TestMemoryExpiresKeys(t *testing.T) {
	m := NewMemory(time.Minute)
	t.Cleanup(func() { _ = m.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = m.Seen(ctx, "k")

	now = now.Add(2 * time.Minute)
	if seen, _ := m.Seen(ctx, "k"); seen {
		t.Fatal("expired key reported seen")
	}

	now = now.Add(2 * time.Minute)
	m.evictExpired()
	m.mu.Lock()
	remaining := len(m.seen)
	m.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("remaining keys = %d, want 0", remaining)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.DedupConfig{})
	if err != nil || store != nil {
		t.Fatalf("New(none) = %v, %v; want nil, nil", store, err)
	}

	store, err = New(ctx, config.DedupConfig{Backend: "memory", TTLSeconds: 5})
	if err != nil {
		t.Fatalf("New(memory) error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("store = %T, want *Memory", store)
	}

	if _, err := New(ctx, config.DedupConfig{Backend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRedisOptions(t *testing.T) {
	if _, err := redisOptions(config.DedupConfig{}); err == nil {
		t.Fatal("expected error without redis_addr")
	}

	opts, err := redisOptions(config.DedupConfig{RedisAddr: "localhost:6380", RedisPassword: "pw", RedisDB: 2})
	if err != nil {
		t.Fatalf("redisOptions error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("options = %+v", opts)
	}

	opts, err = redisOptions(config.DedupConfig{RedisAddr: "redis://:secret@cache:6379/3"})
	if err != nil {
		t.Fatalf("redisOptions url error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "secret" || opts.DB != 3 {
		t.Fatalf("url options = %+v", opts)
	}
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedis(ctx, config.DedupConfig{RedisAddr: "127.0.0.1:1"}, time.Minute); err == nil {
		t.Fatal("expected connection error")
	}
}
