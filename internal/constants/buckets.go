package constants

// ─── Histogram Buckets ─────────────────────────────────────────────

// PublishLatencyBuckets covers 50µs to 2.5s, from an in-process publish
// buffer write up to a sink under reconnect.
var PublishLatencyBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025,
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5,
}

// ─── Common Prometheus Label Sets ──────────────────────────────────
// Pre-defined label slices to avoid repeated allocations.

var LabelsKind = []string{LabelKind}
var LabelsKindReason = []string{LabelKind, LabelReason}
var LabelsKindPublisher = []string{LabelKind, LabelPublisher}
