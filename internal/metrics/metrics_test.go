package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/executor"
)

func TestNew_IndependentRegistries(t *testing.T) {
	// A reload creates a second instance; it must not collide with the first.
	a := New()
	b := New()
	assert.NotSame(t, a.Registry, b.Registry)
}

func TestObservePublish(t *testing.T) {
	m := New()

	m.ObservePublish("account", constants.PublisherNATS, time.Millisecond, nil)
	m.ObservePublish("account", constants.PublisherNATS, time.Millisecond, nil)
	m.ObservePublish("account", constants.PublisherNATS, time.Millisecond, errors.New("nats: timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesPublished.WithLabelValues("account", constants.PublisherNATS)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors.WithLabelValues("account", constants.PublisherNATS)))
}

func TestWatchRuntime(t *testing.T) {
	rt, err := executor.Build(executor.Config{WorkerThreads: 2}, zap.NewNop())
	require.NoError(t, err)
	defer rt.Shutdown(time.Second)

	m := New()
	m.WatchRuntime(rt)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetGauge() != nil {
			found[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 2.0, found[constants.MetricWorkers])
	assert.Equal(t, 0.0, found[constants.MetricQueueDepth])
}
