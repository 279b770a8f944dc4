package publisher

import (
	"context"
	"sync"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// Tap wraps a Publisher and mirrors every successfully published message to
// live subscribers. Slow subscribers lose messages instead of stalling the
// worker.
type Tap struct {
	Publisher

	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewTap wraps next.
func NewTap(next Publisher) *Tap {
	return &Tap{Publisher: next, subs: make(map[chan []byte]struct{})}
}

func (t *Tap) Publish(ctx context.Context, msg *message.Message) error {
	if err := t.Publisher.Publish(ctx, msg); err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.subs) == 0 {
		return nil
	}
	data, err := message.Encode(msg)
	if err != nil {
		return nil
	}
	for ch := range t.subs {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of encoded messages and a cancel func. The
// channel is closed by cancel or by Close.
func (t *Tap) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subs[ch]; ok {
				delete(t.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscribers.
func (t *Tap) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Close ends every subscription, then closes the wrapped publisher.
func (t *Tap) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
	t.mu.Unlock()
	return t.Publisher.Close(ctx)
}
