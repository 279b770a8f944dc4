// Package bridge adapts host notifications into outbound messages.
//
// Every method runs on the host's calling thread and never blocks: it
// converts the payload, hands a publish task to the runtime and returns.
// Publishing happens later on a worker thread.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/executor"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/metrics"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/publisher"
)

// Submitter accepts tasks without blocking. *executor.Runtime implements it.
type Submitter interface {
	Submit(task executor.Task) error
}

// SubmissionError reports an event that converted cleanly but could not be
// handed to the runtime. The host decides whether to retry or stop.
type SubmissionError struct {
	Kind message.Kind
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Bridge turns host callbacks into publish tasks.
type Bridge struct {
	rt      Submitter
	pub     publisher.Publisher
	flags   config.NotificationsConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Bridge. m may be nil.
func New(rt Submitter, pub publisher.Publisher, flags config.NotificationsConfig, m *metrics.Metrics, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{rt: rt, pub: pub, flags: flags, metrics: m, logger: logger}
}

// UpdateAccount handles an account write. Startup snapshot writes are
// skipped unless account snapshots are enabled; the payload version is
// checked first either way.
func (b *Bridge) UpdateAccount(account geyser.ReplicaAccountInfoVersions, slot uint64, isStartup bool) error {
	msg, err := message.FromAccount(account, slot, isStartup)
	if err != nil {
		return b.dispatch(message.KindAccount, nil, err)
	}
	if isStartup && !b.flags.AccountSnapshot {
		b.skipped(message.KindAccount)
		return nil
	}
	return b.dispatch(message.KindAccount, msg, nil)
}

// NotifyEndOfStartup marks the end of the startup snapshot.
func (b *Bridge) NotifyEndOfStartup() error {
	return b.dispatch(message.KindEndOfStartup, message.EndOfStartup(), nil)
}

// UpdateSlotStatus handles a slot commitment transition.
func (b *Bridge) UpdateSlotStatus(slot uint64, parent *uint64, status geyser.SlotStatus) error {
	if !b.flags.SlotStatus {
		b.skipped(message.KindSlot)
		return nil
	}
	return b.dispatch(message.KindSlot, message.FromSlotStatus(slot, parent, status), nil)
}

// NotifyTransaction handles an executed transaction.
func (b *Bridge) NotifyTransaction(tx geyser.ReplicaTransactionInfoVersions, slot uint64) error {
	msg, err := message.FromTransaction(tx, slot)
	return b.dispatch(message.KindTransaction, msg, err)
}

// NotifyEntry handles a PoH entry.
func (b *Bridge) NotifyEntry(entry geyser.ReplicaEntryInfoVersions) error {
	msg, err := message.FromEntry(entry)
	return b.dispatch(message.KindEntry, msg, err)
}

// NotifyBlockMetadata handles block metadata.
func (b *Bridge) NotifyBlockMetadata(info geyser.ReplicaBlockInfoVersions) error {
	if !b.flags.BlockMetadata {
		b.skipped(message.KindBlockMeta)
		return nil
	}
	msg, err := message.FromBlockMetadata(info)
	return b.dispatch(message.KindBlockMeta, msg, err)
}

// dispatch submits msg, or reports why it cannot. A conversion error is a
// host/plugin contract mismatch and is logged loudly; nothing is published.
func (b *Bridge) dispatch(kind message.Kind, msg *message.Message, convErr error) error {
	b.received(kind)

	if convErr != nil {
		b.rejected(kind, constants.ReasonUnsupportedVersion)
		b.logger.Error("Rejected event with unsupported payload version",
			zap.String("kind", kind.String()),
			zap.Error(convErr))
		return convErr
	}

	if err := b.rt.Submit(b.publishTask(msg)); err != nil {
		reason := constants.ReasonQueueFull
		if errors.Is(err, executor.ErrShuttingDown) {
			reason = constants.ReasonShuttingDown
		}
		b.rejected(kind, reason)
		b.logger.Warn("Event submission failed",
			zap.String("kind", kind.String()),
			zap.Uint64("slot", msg.SlotNumber()),
			zap.Error(err))
		return &SubmissionError{Kind: kind, Err: err}
	}
	return nil
}

func (b *Bridge) publishTask(msg *message.Message) executor.Task {
	return func(ctx context.Context) {
		start := time.Now()
		err := b.pub.Publish(ctx, msg)
		if b.metrics != nil {
			b.metrics.ObservePublish(msg.Kind.String(), b.pub.Name(), time.Since(start), err)
		}
		if err != nil {
			b.logger.Error("Publish failed",
				zap.String("kind", msg.Kind.String()),
				zap.Uint64("slot", msg.SlotNumber()),
				zap.String("id", msg.ID.String()),
				zap.Error(err))
		}
	}
}

func (b *Bridge) received(kind message.Kind) {
	if b.metrics != nil {
		b.metrics.EventsReceived.WithLabelValues(kind.String()).Inc()
	}
}

func (b *Bridge) rejected(kind message.Kind, reason string) {
	if b.metrics != nil {
		b.metrics.EventsRejected.WithLabelValues(kind.String(), reason).Inc()
	}
}

func (b *Bridge) skipped(kind message.Kind) {
	if b.metrics != nil {
		b.metrics.EventsSkipped.WithLabelValues(kind.String()).Inc()
	}
}
