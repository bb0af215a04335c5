package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/gateway"
)

// MetricsCollector defines the interface for collecting journal metrics
type MetricsCollector interface {
	RecordEventPublished(eventType string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventPublished(eventType string, success bool, duration time.Duration) {
}
func (NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, success bool) {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventCounter    *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	publishAttempts *prometheus.CounterVec
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftslots",
			Subsystem: "journal",
			Name:      "events_total",
			Help:      "Draft events appended to the journal by result.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "draftslots",
			Subsystem: "journal",
			Name:      "publish_duration_seconds",
			Help:      "Time to append one event, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftslots",
			Subsystem: "journal",
			Name:      "publish_attempts_total",
			Help:      "Individual publish attempts by result.",
		}, []string{"event_type", "status"}),
	}
	reg.MustRegister(m.eventCounter, m.eventDuration, m.publishAttempts)
	return m
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *PrometheusMetrics) RecordEventPublished(eventType string, success bool, duration time.Duration) {
	m.eventCounter.WithLabelValues(eventType, status(success)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.publishAttempts.WithLabelValues(eventType, status(success)).Inc()
}

// RetryConfig bounds MetricPublisher retries.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration // grows linearly with the attempt
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, RetryDelay: 200 * time.Millisecond}
}

// MetricPublisher wraps a sink with retries and metrics collection
type MetricPublisher struct {
	publisher gateway.EventSink
	metrics   MetricsCollector
	config    RetryConfig
	clock     clockwork.Clock
}

func NewMetricPublisher(publisher gateway.EventSink, metrics MetricsCollector, config RetryConfig, clock clockwork.Clock) *MetricPublisher {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
		config:    config,
		clock:     clock,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event *gateway.DraftEvent) error {
	start := p.clock.Now()
	err := p.publishWithRetry(ctx, event)
	p.metrics.RecordEventPublished(string(event.Type), err == nil, p.clock.Since(start))
	return err
}

func (p *MetricPublisher) publishWithRetry(ctx context.Context, event *gateway.DraftEvent) error {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 && p.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := p.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			p.metrics.RecordPublishAttempt(string(event.Type), attempt+1, false)
			log.Warn().
				Err(err).
				Str("event_id", event.ID).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		p.metrics.RecordPublishAttempt(string(event.Type), attempt+1, true)
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}
