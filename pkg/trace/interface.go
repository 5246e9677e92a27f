// Package trace exports per-call timing records for generation calls.
package trace

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Exporter defines the interface for exporting operation traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// TraceRecord is a sanitized generation trace ready for export.
// It never carries prompts, replies or credentials.
type TraceRecord struct {
	// Timestamp is the call start time
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this call (for correlation with history)
	OperationID string `json:"operationId"`

	// Operation is "generate" or "generate_into"
	Operation string `json:"operation"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Mode is "text" or "structured"
	Mode string `json:"mode"`

	// SchemaName is set for structured calls
	SchemaName string `json:"schemaName,omitempty"`

	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error"
	Status string `json:"status"`

	Spans []SpanRecord `json:"spans"`

	// ErrorType is the classified error label (if Status == "error")
	ErrorType string `json:"errorType,omitempty"`
}

// SpanRecord represents a single stage within a call.
type SpanRecord struct {
	// Name is the stage name: request or validate
	Name string `json:"name"`

	DurationMs int64 `json:"durationMs"`

	OK bool `json:"ok"`

	ErrorType string `json:"errorType,omitempty"`

	// Counters carries stage-specific sizes (e.g. violations, responseBytes)
	Counters map[string]int64 `json:"counters,omitempty"`
}

// FileExporterOption configures a FileExporter.
// Available in both tracing and non-tracing builds.
type FileExporterOption func(*fileOptions)

type fileOptions struct {
	maxSizeBytes    int64
	maxRotatedFiles int
	partition       bool
}

const (
	defaultMaxSizeBytes    = 10 * 1024 * 1024
	defaultMaxRotatedFiles = 5
)

func newFileOptions(opts []FileExporterOption) fileOptions {
	o := fileOptions{
		maxSizeBytes:    defaultMaxSizeBytes,
		maxRotatedFiles: defaultMaxRotatedFiles,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxSize sets the size in bytes at which a file is rotated (default 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(o *fileOptions) {
		if bytes > 0 {
			o.maxSizeBytes = bytes
		}
	}
}

// WithMaxRotatedFiles sets how many rotated files are kept per trace file
// (default 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(o *fileOptions) {
		if count >= 0 {
			o.maxRotatedFiles = count
		}
	}
}

// WithProviderPartitions writes each provider's records to its own file.
func WithProviderPartitions() FileExporterOption {
	return func(o *fileOptions) {
		o.partition = true
	}
}

// Status values of a TraceRecord
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// ErrInvalidRecord is returned by Export for records that cannot be
	// correlated with a call.
	ErrInvalidRecord = errors.New("invalid trace record")

	// ErrClosed is returned by Export after Close.
	ErrClosed = errors.New("trace exporter closed")
)

// Validate checks that the record can be matched to its history entry.
func (r *TraceRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	}
	if r.OperationID == "" {
		return fmt.Errorf("%w: missing operation id", ErrInvalidRecord)
	}
	switch r.Status {
	case StatusSuccess:
		if r.ErrorType != "" {
			return fmt.Errorf("%w: %s: error type %q on a successful call", ErrInvalidRecord, r.OperationID, r.ErrorType)
		}
	case StatusError:
	default:
		return fmt.Errorf("%w: %s: unknown status %q", ErrInvalidRecord, r.OperationID, r.Status)
	}
	return nil
}
