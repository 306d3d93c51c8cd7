package gateway

import (
	"context"
	"sync"

	"instarelay/pkg/bus"
	"instarelay/pkg/channel"
	"instarelay/pkg/dialogue"
)

// conversationManager serializes engine calls per conversation so replies to
// one sender are not interleaved when the platform delivers concurrently.
type conversationManager struct {
	engine dialogue.Engine

	mu            sync.Mutex
	conversations map[string]*conversation
}

// conversation is the lock for one sender, dropped once nobody waits on it.
type conversation struct {
	mu   sync.Mutex
	refs int
}

func newConversationManager(engine dialogue.Engine) *conversationManager {
	return &conversationManager{
		engine:        engine,
		conversations: make(map[string]*conversation),
	}
}

// Handle routes one message to the engine while holding its conversation lock.
func (m *conversationManager) Handle(ctx context.Context, msg bus.InboundMessage, out channel.OutputChannel) error {
	key := msg.Channel + ":" + msg.SenderID

	conv := m.acquire(key)
	defer m.release(key, conv)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return m.engine.Handle(ctx, msg, out)
}

func (m *conversationManager) acquire(key string) *conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[key]
	if !ok {
		conv = &conversation{}
		m.conversations[key] = conv
	}
	conv.refs++

	return conv
}

func (m *conversationManager) release(key string, conv *conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv.refs--
	if conv.refs == 0 {
		delete(m.conversations, key)
	}
}

// active reports how many conversations currently hold or wait on a lock.
func (m *conversationManager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.conversations)
}
