package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
)

// Row is one archived message.
type Row struct {
	ID        string
	CreatedAt time.Time
	Kind      string
	Slot      uint64
	Payload   string
}

// inserter writes rows in one round trip.
type inserter interface {
	InsertBatch(ctx context.Context, rows []Row) error
	Close() error
}

// ClickHouse archives messages in a table, batched by size or interval.
//
// Expected schema:
//
//	CREATE TABLE geyser.messages (
//	    id         UUID,
//	    created_at DateTime64(3),
//	    kind       LowCardinality(String),
//	    slot       UInt64,
//	    payload    String
//	) ENGINE = MergeTree ORDER BY (kind, slot);
type ClickHouse struct {
	cfg    config.ClickHouseConfig
	logger *zap.Logger

	open func(ctx context.Context) (inserter, error)
	db   inserter

	mu    sync.Mutex
	batch []Row

	stop chan struct{}
	done chan struct{}
}

// NewClickHouse creates a ClickHouse publisher.
func NewClickHouse(cfg config.ClickHouseConfig, logger *zap.Logger) *ClickHouse {
	c := &ClickHouse{
		cfg:    cfg,
		logger: logger,
		batch:  make([]Row, 0, cfg.BatchSize),
	}
	c.open = func(ctx context.Context) (inserter, error) {
		return openClickHouse(ctx, cfg, logger)
	}
	return c
}

func (c *ClickHouse) Name() string { return constants.PublisherClickHouse }

func (c *ClickHouse) Connect(ctx context.Context) error {
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.flusher()

	c.logger.Info("ClickHouse publisher started",
		zap.String("table", c.cfg.Table),
		zap.Int("batch_size", c.cfg.BatchSize))
	return nil
}

// Publish appends msg to the pending batch and flushes when it is full.
func (c *ClickHouse) Publish(ctx context.Context, msg *message.Message) error {
	payload, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	row := Row{
		ID:        msg.ID.String(),
		CreatedAt: msg.CreatedAt,
		Kind:      msg.Kind.String(),
		Slot:      msg.SlotNumber(),
		Payload:   string(payload),
	}

	c.mu.Lock()
	if c.db == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.batch = append(c.batch, row)
	full := len(c.batch) >= c.cfg.BatchSize
	c.mu.Unlock()

	if full {
		return c.flush(ctx)
	}
	return nil
}

// flush writes accumulated rows to ClickHouse.
func (c *ClickHouse) flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.batch) == 0 || c.db == nil {
		c.mu.Unlock()
		return nil
	}
	batch := c.batch
	db := c.db
	c.batch = make([]Row, 0, c.cfg.BatchSize)
	c.mu.Unlock()

	if err := db.InsertBatch(ctx, batch); err != nil {
		c.logger.Error("ClickHouse batch insert failed",
			zap.Error(err), zap.Int("rows", len(batch)))
		return err
	}
	c.logger.Debug("Flushed to ClickHouse", zap.Int("rows", len(batch)))
	return nil
}

func (c *ClickHouse) flusher() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FlushInterval)
			_ = c.flush(ctx)
			cancel()
		}
	}
}

// Close stops the flusher, writes the final batch and closes the connection.
func (c *ClickHouse) Close(ctx context.Context) error {
	c.mu.Lock()
	connected := c.db != nil
	c.mu.Unlock()
	if !connected {
		return nil
	}
	close(c.stop)
	<-c.done

	flushErr := c.flush(ctx)

	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()

	if err := db.Close(); err != nil {
		return err
	}
	c.logger.Info("ClickHouse publisher stopped")
	return flushErr
}

// chConn is the ClickHouse native-protocol client.
type chConn struct {
	conn   driver.Conn
	table  string
	logger *zap.Logger
}

func openClickHouse(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*chConn, error) {
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	opts.MaxOpenConns = cfg.MaxConns
	opts.MaxIdleConns = cfg.MaxConns
	opts.ConnMaxLifetime = 10 * time.Minute

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	logger.Info("ClickHouse connected", zap.String("table", cfg.Table))
	return &chConn{conn: conn, table: cfg.Table, logger: logger}, nil
}

// InsertBatch uses the native batch protocol.
func (ch *chConn) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := ch.conn.PrepareBatch(ctx,
		"INSERT INTO "+ch.table+" (id, created_at, kind, slot, payload)")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(r.ID, r.CreatedAt, r.Kind, r.Slot, r.Payload); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (ch *chConn) Close() error {
	return ch.conn.Close()
}
