// Package metrics provides Prometheus metric definitions for the plugin.
//
// Each loaded plugin instance owns its own registry so a host reload never
// trips duplicate registration against the global default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/executor"
)

// Metrics holds all plugin metrics.
type Metrics struct {
	Registry *prometheus.Registry

	EventsReceived    *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	EventsSkipped     *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec
	PublishLatency    *prometheus.HistogramVec
}

// New creates the plugin metrics on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricEventsReceived,
			Help: "Total host notifications received.",
		}, constants.LabelsKind),

		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricEventsRejected,
			Help: "Total host notifications rejected, by reason.",
		}, constants.LabelsKindReason),

		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricEventsSkipped,
			Help: "Total host notifications skipped because the kind is disabled.",
		}, constants.LabelsKind),

		MessagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricMessagesPublished,
			Help: "Total messages delivered to the publisher.",
		}, constants.LabelsKindPublisher),

		PublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricPublishErrors,
			Help: "Total publish failures.",
		}, constants.LabelsKindPublisher),

		PublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    constants.MetricPublishLatency,
			Help:    "Time spent in a single publish call.",
			Buckets: constants.PublishLatencyBuckets,
		}, constants.LabelsKindPublisher),
	}
}

// WatchRuntime exposes runtime queue depth, worker count and task panics,
// read from rt on every scrape.
func (m *Metrics) WatchRuntime(rt *executor.Runtime) {
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: constants.MetricQueueDepth,
			Help: "Tasks waiting in the runtime queue.",
		}, func() float64 { return float64(rt.Stats().QueueDepth) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: constants.MetricWorkers,
			Help: "Runtime worker threads.",
		}, func() float64 { return float64(rt.Stats().Workers) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: constants.MetricTaskPanics,
			Help: "Publish tasks that panicked and were recovered.",
		}, func() float64 { return float64(rt.Stats().Panicked) }),
	)
}

// ObservePublish records one publish attempt.
func (m *Metrics) ObservePublish(kind, publisher string, took time.Duration, err error) {
	m.PublishLatency.WithLabelValues(kind, publisher).Observe(took.Seconds())
	if err != nil {
		m.PublishErrors.WithLabelValues(kind, publisher).Inc()
		return
	}
	m.MessagesPublished.WithLabelValues(kind, publisher).Inc()
}
