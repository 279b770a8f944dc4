package publisher

import (
	"context"
	"sync"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// Memory keeps every published message in memory. It backs dry runs and
// tests.
type Memory struct {
	// Hook, if set, runs before a message is recorded. A non-nil error
	// fails the publish.
	Hook func(ctx context.Context, msg *message.Message) error

	mu        sync.Mutex
	msgs      []*message.Message
	connected bool
	closed    bool
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Publish(ctx context.Context, msg *message.Message) error {
	if m.Hook != nil {
		if err := m.Hook(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *Memory) Close(_ context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of everything published so far.
func (m *Memory) Messages() []*message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*message.Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Len returns the number of published messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// State reports whether Connect and Close have been called.
func (m *Memory) State() (connected, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, m.closed
}
