package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
)

type slowEngine struct {
	stubEngine

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *slowEngine) Handle(context.Context, bus.InboundMessage, channel.OutputChannel) error {
	current := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	for {
		seen := e.maxSeen.Load()
		if current <= seen || e.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	time.Sleep(20 * time.Millisecond)
	return nil
}

func TestConversationManagerSerializesPerSender(t *testing.T) {
	t.Parallel()

	engine := &slowEngine{}
	manager := newConversationManager(engine)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = manager.Handle(context.Background(), bus.InboundMessage{Channel: "instagram", SenderID: "u1"}, nil)
		}()
	}
	wg.Wait()

	if got := engine.maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent calls for one sender = %d, want 1", got)
	}
	if got := manager.active(); got != 0 {
		t.Fatalf("active conversations = %d, want 0 after all calls return", got)
	}
}

func TestConversationManagerRunsSendersConcurrently(t *testing.T) {
	t.Parallel()

	engine := &slowEngine{}
	manager := newConversationManager(engine)

	var wg sync.WaitGroup
	for _, sender := range []string{"u1", "u2", "u3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = manager.Handle(context.Background(), bus.InboundMessage{Channel: "instagram", SenderID: sender}, nil)
		}()
	}
	wg.Wait()

	if got := engine.maxSeen.Load(); got < 2 {
		t.Fatalf("max concurrent calls = %d, want distinct senders to overlap", got)
	}
}

func TestConversationManagerSkipsCanceledContext(t *testing.T) {
	t.Parallel()

	engine := &slowEngine{}
	manager := newConversationManager(engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := manager.Handle(ctx, bus.InboundMessage{SenderID: "u1"}, nil); err == nil {
		t.Fatal("expected context error")
	}
	if got := engine.maxSeen.Load(); got != 0 {
		t.Fatalf("engine called %d times, want 0", got)
	}
}
