package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, msg any) *redis.IntCmd
	Close() error
}

// Redis publishes each message on the pub/sub channel "<prefix>:<kind>".
// Pub/sub is fire-and-forget: messages with no subscriber are dropped by
// the server.
type Redis struct {
	cfg    config.RedisConfig
	prefix string
	logger *zap.Logger

	mu     sync.RWMutex
	client redisClient

	newClient func() redisClient
}

// NewRedis creates a Redis publisher.
func NewRedis(cfg config.RedisConfig, prefix string, logger *zap.Logger) *Redis {
	return &Redis{
		cfg:    cfg,
		prefix: prefix,
		logger: logger,
		newClient: func() redisClient {
			return redis.NewClient(&redis.Options{
				Addr:     cfg.Addr,
				PoolSize: cfg.PoolSize,
			})
		},
	}
}

func (r *Redis) Name() string { return constants.PublisherRedis }

// Connect creates the client and pings it.
func (r *Redis) Connect(ctx context.Context) error {
	client := r.newClient()

	ctx, cancel := context.WithTimeout(ctx, constants.RedisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping %s: %w", r.cfg.Addr, err)
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	r.logger.Info("Redis publisher started",
		zap.String("addr", r.cfg.Addr),
		zap.String("prefix", r.prefix))
	return nil
}

func (r *Redis) Publish(ctx context.Context, msg *message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return ErrNotConnected
	}
	return r.client.Publish(ctx, message.Subject(r.prefix, ":", msg.Kind), data).Err()
}

func (r *Redis) Close(_ context.Context) error {
	r.mu.Lock()
	client := r.client
	r.client = nil
	r.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}
