package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/executor"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/metrics"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/publisher"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func allEnabled() config.NotificationsConfig {
	n := config.Default().Notifications
	n.AccountSnapshot = true
	return n
}

func newRuntime(t *testing.T, workers, queue int) *executor.Runtime {
	t.Helper()
	rt, err := executor.Build(executor.Config{WorkerThreads: workers, QueueSize: queue}, zap.NewNop())
	require.NoError(t, err)
	return rt
}

// fire sends one event of each kind, cycling on i.
func fire(t *testing.T, b *Bridge, i int) {
	t.Helper()
	slot := uint64(i)
	var err error
	switch i % 6 {
	case 0:
		err = b.UpdateAccount(&geyser.ReplicaAccountInfoV3{}, slot, false)
	case 1:
		err = b.NotifyTransaction(&geyser.ReplicaTransactionInfoV2{}, slot)
	case 2:
		err = b.NotifyEntry(&geyser.ReplicaEntryInfoV2{ReplicaEntryInfo: geyser.ReplicaEntryInfo{Slot: slot}})
	case 3:
		err = b.NotifyBlockMetadata(&geyser.ReplicaBlockInfoV4{Slot: slot})
	case 4:
		err = b.UpdateSlotStatus(slot, nil, geyser.SlotConfirmed)
	case 5:
		err = b.NotifyEndOfStartup()
	}
	require.NoError(t, err)
}

func TestBridge_DeliversEveryEventExactlyOnce(t *testing.T) {
	const n = 600
	rt := newRuntime(t, 4, n)
	pub := publisher.NewMemory()
	b := New(rt, pub, allEnabled(), nil, zap.NewNop())

	for i := 0; i < n; i++ {
		fire(t, b, i)
	}
	require.True(t, rt.Shutdown(0))

	msgs := pub.Messages()
	require.Len(t, msgs, n)

	// Workers drain concurrently, so only the set is compared.
	seen := make(map[string]bool, n)
	perKind := map[message.Kind]int{}
	for _, m := range msgs {
		assert.False(t, seen[m.ID.String()], "duplicate message %s", m.ID)
		seen[m.ID.String()] = true
		perKind[m.Kind]++
	}
	for _, k := range message.Kinds {
		assert.Equal(t, n/6, perKind[k], "kind %s", k)
	}
}

func TestBridge_UnsupportedVersionPublishesNothing(t *testing.T) {
	rt := newRuntime(t, 1, 64)
	pub := publisher.NewMemory()
	m := metrics.New()
	b := New(rt, pub, allEnabled(), m, zap.NewNop())

	tests := []struct {
		name string
		call func() error
		kind message.Kind
	}{
		{"account v2", func() error { return b.UpdateAccount(&geyser.ReplicaAccountInfoV2{}, 1, false) }, message.KindAccount},
		{"transaction v1", func() error { return b.NotifyTransaction(&geyser.ReplicaTransactionInfo{}, 1) }, message.KindTransaction},
		{"entry v1", func() error { return b.NotifyEntry(&geyser.ReplicaEntryInfo{}) }, message.KindEntry},
		{"block v3", func() error { return b.NotifyBlockMetadata(&geyser.ReplicaBlockInfoV3{}) }, message.KindBlockMeta},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, message.ErrUnsupportedVersion)

			var uv *message.UnsupportedVersionError
			require.ErrorAs(t, err, &uv)
			assert.Equal(t, tt.kind, uv.Kind)
			assert.Equal(t, 1.0, testutil.ToFloat64(
				m.EventsRejected.WithLabelValues(tt.kind.String(), constants.ReasonUnsupportedVersion)))
		})
	}

	require.True(t, rt.Shutdown(0))
	assert.Zero(t, pub.Len())
}

func TestBridge_QueueFullIsSubmissionError(t *testing.T) {
	rt := newRuntime(t, 1, 1)
	release := make(chan struct{})
	pub := publisher.NewMemory()
	pub.Hook = func(ctx context.Context, _ *message.Message) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	m := metrics.New()
	b := New(rt, pub, allEnabled(), m, zap.NewNop())

	// One task occupies the worker, one fills the queue.
	require.NoError(t, b.NotifyEndOfStartup())
	require.Eventually(t, func() bool { return rt.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, b.NotifyEndOfStartup())

	err := b.UpdateSlotStatus(7, nil, geyser.SlotRooted)
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, message.KindSlot, se.Kind)
	assert.ErrorIs(t, err, executor.ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.EventsRejected.WithLabelValues("slot", constants.ReasonQueueFull)))

	close(release)
	require.True(t, rt.Shutdown(0))
	assert.Equal(t, 2, pub.Len())
}

func TestBridge_SubmitAfterShutdown(t *testing.T) {
	rt := newRuntime(t, 1, 64)
	require.True(t, rt.Shutdown(time.Second))

	b := New(rt, publisher.NewMemory(), allEnabled(), nil, nil)
	err := b.NotifyEndOfStartup()
	assert.ErrorIs(t, err, executor.ErrShuttingDown)

	var se *SubmissionError
	assert.ErrorAs(t, err, &se)
}

func TestBridge_DisabledKindsAreSkipped(t *testing.T) {
	rt := newRuntime(t, 1, 64)
	pub := publisher.NewMemory()
	m := metrics.New()

	flags := config.Default().Notifications
	flags.SlotStatus = false
	flags.BlockMetadata = false
	b := New(rt, pub, flags, m, zap.NewNop())

	require.NoError(t, b.UpdateSlotStatus(1, nil, geyser.SlotProcessed))
	require.NoError(t, b.NotifyBlockMetadata(&geyser.ReplicaBlockInfoV4{}))
	// Snapshot writes are off by default.
	require.NoError(t, b.UpdateAccount(&geyser.ReplicaAccountInfoV3{}, 1, true))
	require.NoError(t, b.UpdateAccount(&geyser.ReplicaAccountInfoV3{}, 2, false))

	require.True(t, rt.Shutdown(0))
	require.Equal(t, 1, pub.Len())
	assert.False(t, pub.Messages()[0].Account.IsStartup)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsSkipped.WithLabelValues("slot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsSkipped.WithLabelValues("block_meta")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsSkipped.WithLabelValues("account")))
}

func TestBridge_UnsupportedSnapshotAccountIsRejected(t *testing.T) {
	m := metrics.New()
	b := New(stubSubmitter{}, publisher.NewMemory(), config.Default().Notifications, m, zap.NewNop())

	err := b.UpdateAccount(&geyser.ReplicaAccountInfo{}, 1, true)
	require.ErrorIs(t, err, message.ErrUnsupportedVersion)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.EventsRejected.WithLabelValues("account", constants.ReasonUnsupportedVersion)))
	assert.Zero(t, testutil.ToFloat64(m.EventsSkipped.WithLabelValues("account")))
}

func TestBridge_PublishErrorIsCounted(t *testing.T) {
	rt := newRuntime(t, 1, 64)
	pub := publisher.NewMemory()
	pub.Hook = func(context.Context, *message.Message) error { return errors.New("nats: connection closed") }
	m := metrics.New()
	b := New(rt, pub, allEnabled(), m, zap.NewNop())

	// The host sees success; the failure surfaces later on the worker.
	require.NoError(t, b.NotifyEndOfStartup())
	require.True(t, rt.Shutdown(0))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.PublishErrors.WithLabelValues("end_of_startup", "memory")))
}

type stubSubmitter struct{ err error }

func (s stubSubmitter) Submit(executor.Task) error { return s.err }

func TestBridge_ReturnsWithoutWaitingForPublisher(t *testing.T) {
	rt := newRuntime(t, 1, 64)
	pub := publisher.NewMemory()
	pub.Hook = func(ctx context.Context, _ *message.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}
	b := New(rt, pub, allEnabled(), nil, zap.NewNop())

	start := time.Now()
	require.NoError(t, b.NotifyEndOfStartup())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.False(t, rt.Shutdown(50*time.Millisecond))
}

func TestBridge_StubSubmitter(t *testing.T) {
	b := New(stubSubmitter{err: executor.ErrQueueFull}, publisher.NewMemory(), allEnabled(), nil, nil)
	err := b.NotifyEntry(&geyser.ReplicaEntryInfoV2{})
	assert.ErrorIs(t, err, executor.ErrQueueFull)
	assert.Contains(t, err.Error(), "submit entry")
}

func BenchmarkBridge_SlotStatus(b *testing.B) {
	br := New(stubSubmitter{}, publisher.NewMemory(), allEnabled(), nil, zap.NewNop())
	for i := 0; i < b.N; i++ {
		_ = br.UpdateSlotStatus(uint64(i), nil, geyser.SlotProcessed)
	}
}
