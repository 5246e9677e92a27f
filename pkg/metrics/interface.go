package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector used when no collector is configured.
type Collector interface {
	// RecordGeneration records a finished Generate call. mode is "text" or
	// "structured", status is "success" or "error".
	RecordGeneration(ctx context.Context, provider string, mode string, status string, durationMs int64)
	RecordStage(ctx context.Context, provider string, stage string, durationMs int64)
	RecordError(ctx context.Context, provider string, errorType string)
	SetHistoryCount(ctx context.Context, count int64)
}
