package metrics

import "context"

// NoopCollector discards everything.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (n *NoopCollector) RecordGeneration(ctx context.Context, provider string, mode string, status string, durationMs int64) {
}

func (n *NoopCollector) RecordStage(ctx context.Context, provider string, stage string, durationMs int64) {
}

func (n *NoopCollector) RecordError(ctx context.Context, provider string, errorType string) {
}

func (n *NoopCollector) SetHistoryCount(ctx context.Context, count int64) {
}
