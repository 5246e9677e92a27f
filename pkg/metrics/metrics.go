package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics for generation calls.
// Label values are provider kinds, modes, stage names and error labels only.
type MetricsCollector struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	historyEntries     prometheus.Gauge
	registry           *prometheus.Registry
}

// latencyBuckets covers fast cached replies up to long structured generations.
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0}

// NewCollector creates a new Prometheus metrics collector with its own registry.
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	generationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "one_generations_total",
			Help: "Total number of generation calls by provider, mode and status",
		},
		[]string{"provider", "mode", "status"},
	)

	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "one_generation_duration_seconds",
			Help:    "End-to-end duration of generation calls",
			Buckets: latencyBuckets,
		},
		[]string{"provider", "mode"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "one_stage_duration_seconds",
			Help:    "Duration of generation stages (request, validate)",
			Buckets: latencyBuckets,
		},
		[]string{"provider", "stage"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "one_errors_total",
			Help: "Total number of failed generation calls by provider and error type",
		},
		[]string{"provider", "error_type"},
	)

	historyEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "one_history_entries",
			Help: "Number of entries in the generation history store",
		},
	)

	registry.MustRegister(generationsTotal, generationDuration, stageDuration, errorsTotal, historyEntries)

	return &MetricsCollector{
		generationsTotal:   generationsTotal,
		generationDuration: generationDuration,
		stageDuration:      stageDuration,
		errorsTotal:        errorsTotal,
		historyEntries:     historyEntries,
		registry:           registry,
	}
}

// RecordGeneration records the completion of a generation call
func (m *MetricsCollector) RecordGeneration(ctx context.Context, provider string, mode string, status string, durationMs int64) {
	m.generationsTotal.WithLabelValues(provider, mode, status).Inc()
	m.generationDuration.WithLabelValues(provider, mode).Observe(float64(durationMs) / 1000.0)
}

// RecordStage records the duration of a single stage of a call
func (m *MetricsCollector) RecordStage(ctx context.Context, provider string, stage string, durationMs int64) {
	m.stageDuration.WithLabelValues(provider, stage).Observe(float64(durationMs) / 1000.0)
}

// RecordError records an error occurrence
func (m *MetricsCollector) RecordError(ctx context.Context, provider string, errorType string) {
	m.errorsTotal.WithLabelValues(provider, errorType).Inc()
}

// SetHistoryCount sets the current history store size
func (m *MetricsCollector) SetHistoryCount(ctx context.Context, count int64) {
	m.historyEntries.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
