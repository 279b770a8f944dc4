// Package publisher delivers outbound messages to external sinks.
// Publishers are called from runtime worker threads, never from the host's
// callback thread, so Publish may block on the network.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// ErrNotConnected is returned by Publish before Connect or after Close.
var ErrNotConnected = errors.New("publisher: not connected")

// Publisher defines the interface for message sinks.
type Publisher interface {
	// Name returns a unique identifier for this publisher.
	Name() string

	// Connect establishes the sink connection. Called once during load.
	Connect(ctx context.Context) error

	// Publish delivers one message. Safe for concurrent use.
	Publish(ctx context.Context, msg *message.Message) error

	// Close flushes buffered messages and releases the connection.
	Close(ctx context.Context) error
}

// Multi fans every message out to all of its publishers.
type Multi struct {
	pubs []Publisher
}

// NewMulti combines pubs. A single publisher is returned unwrapped.
func NewMulti(pubs ...Publisher) Publisher {
	if len(pubs) == 1 {
		return pubs[0]
	}
	return &Multi{pubs: pubs}
}

func (m *Multi) Name() string { return constants.PublisherMulti }

// Connect connects every publisher in order. On failure the ones already
// connected are closed again.
func (m *Multi) Connect(ctx context.Context) error {
	for i, p := range m.pubs {
		if err := p.Connect(ctx); err != nil {
			for _, done := range m.pubs[:i] {
				_ = done.Close(ctx)
			}
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Publish delivers msg to every publisher, even if one of them fails.
func (m *Multi) Publish(ctx context.Context, msg *message.Message) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close(ctx context.Context) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the publishers enabled in cfg. Nothing is connected yet.
func FromConfig(cfg config.PublishersConfig, logger *zap.Logger) (Publisher, error) {
	var pubs []Publisher
	if cfg.NATS.Enabled {
		pubs = append(pubs, NewNATS(cfg.NATS, cfg.SubjectPrefix, logger))
	}
	if cfg.Redis.Enabled {
		pubs = append(pubs, NewRedis(cfg.Redis, cfg.SubjectPrefix, logger))
	}
	if cfg.ClickHouse.Enabled {
		pubs = append(pubs, NewClickHouse(cfg.ClickHouse, logger))
	}
	if len(pubs) == 0 {
		return nil, errors.New("no publisher enabled")
	}
	return NewMulti(pubs...), nil
}
