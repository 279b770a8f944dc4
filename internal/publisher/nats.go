package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATS publishes each message as core NATS to "<prefix>.<kind>". With
// JetStream enabled it also provisions a stream capturing "<prefix>.>" so
// the messages are persisted for replay.
type NATS struct {
	cfg    config.NATSConfig
	prefix string
	logger *zap.Logger

	mu sync.RWMutex
	nc natsConn

	// dial is replaced in tests.
	dial func(ctx context.Context) (natsConn, error)
}

// NewNATS creates a NATS publisher (Factory constructor).
func NewNATS(cfg config.NATSConfig, prefix string, logger *zap.Logger) *NATS {
	p := &NATS{cfg: cfg, prefix: prefix, logger: logger}
	p.dial = p.connect
	return p
}

func (p *NATS) Name() string { return constants.PublisherNATS }

func (p *NATS) Connect(ctx context.Context) error {
	nc, err := p.dial(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.nc = nc
	p.mu.Unlock()

	p.logger.Info("NATS publisher started",
		zap.String("url", p.cfg.URL),
		zap.String("subjects", p.wildcard()),
		zap.Bool("jetstream", p.cfg.JetStream))
	return nil
}

func (p *NATS) connect(ctx context.Context) (natsConn, error) {
	nc, err := nats.Connect(p.cfg.URL,
		nats.Name(p.cfg.Name),
		nats.Timeout(constants.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(constants.NATSReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.cfg.URL, err)
	}

	if p.cfg.JetStream {
		if err := p.ensureStream(ctx, nc); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return nc, nil
}

func (p *NATS) ensureStream(ctx context.Context, nc *nats.Conn) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      p.cfg.Stream,
		Subjects:  []string{p.wildcard()},
		Retention: jetstream.LimitsPolicy,
		MaxBytes:  constants.NATSStreamMaxBytes,
		Discard:   jetstream.DiscardOld,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("stream %s: %w", p.cfg.Stream, err)
	}
	return nil
}

func (p *NATS) wildcard() string {
	if p.prefix == "" {
		return ">"
	}
	return p.prefix + ".>"
}

func (p *NATS) Publish(_ context.Context, msg *message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nc == nil {
		return ErrNotConnected
	}
	return p.nc.Publish(message.Subject(p.prefix, ".", msg.Kind), data)
}

// Close flushes pending publishes and drains the connection.
func (p *NATS) Close(ctx context.Context) error {
	p.mu.Lock()
	nc := p.nc
	p.nc = nil
	p.mu.Unlock()
	if nc == nil {
		return nil
	}

	flushErr := nc.FlushWithContext(ctx)
	if err := nc.Drain(); err != nil {
		return errors.Join(flushErr, err)
	}
	p.logger.Info("NATS publisher stopped")
	return flushErr
}
