package dedup

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local TTL set.
type Memory struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.seen[key]; ok && now.Sub(at) < m.ttl {
		return true, nil
	}
	m.seen[key] = now
	return false, nil
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Memory) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	for key, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, key)
		}
	}
}
