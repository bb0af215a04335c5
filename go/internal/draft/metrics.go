package draft

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting draft metrics
type MetricsCollector interface {
	RecordTransition(op string, outcome string, duration time.Duration)
	RecordCommitConflict(op string)
	RecordEnrichment(resolved int, unavailable int)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordTransition(op string, outcome string, duration time.Duration) {}
func (NoOpMetricsCollector) RecordCommitConflict(op string)                                     {}
func (NoOpMetricsCollector) RecordEnrichment(resolved int, unavailable int)                     {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	transitions   *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	pointsLookups *prometheus.CounterVec
}

// NewPrometheusMetrics registers the draft collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftslots",
			Name:      "transitions_total",
			Help:      "Draft operations by outcome (accepted, rejected, silent, transient, error).",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "draftslots",
			Name:      "transition_duration_seconds",
			Help:      "Time from request to committed write, including external fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftslots",
			Name:      "commit_conflicts_total",
			Help:      "Writes retried because the snapshot moved underneath them.",
		}, []string{"op"}),
		pointsLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftslots",
			Name:      "points_lookups_total",
			Help:      "Fantasy points lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.transitions, m.durations, m.conflicts, m.pointsLookups)
	return m
}

func (m *PrometheusMetrics) RecordTransition(op string, outcome string, duration time.Duration) {
	m.transitions.WithLabelValues(op, outcome).Inc()
	m.durations.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordCommitConflict(op string) {
	m.conflicts.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) RecordEnrichment(resolved int, unavailable int) {
	m.pointsLookups.WithLabelValues("resolved").Add(float64(resolved))
	m.pointsLookups.WithLabelValues("unavailable").Add(float64(unavailable))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case IsSilent(err):
		return "silent"
	case IsRejection(err):
		return "rejected"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
