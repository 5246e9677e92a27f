package one

import "time"

// Stage names recorded in OperationTrace spans and stage metrics.
const (
	StageRequest  = "request"
	StageValidate = "validate"
)

// OperationTrace captures timing data for a single Generate call.
type OperationTrace struct {
	// OperationID correlates the call with exported traces and history entries
	OperationID string `json:"operationId"`

	// Spans contains timing data for each stage of the call
	Spans []Span `json:"spans"`

	// TotalDurationMs is the sum of span durations in milliseconds
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Span represents a single timed stage within a call.
// Stage names are stable:
//   - "request": provider request and reply mapping
//   - "validate": schema validation of structured output
type Span struct {
	Name string `json:"name"`

	DurationMs int64 `json:"durationMs"`

	OK bool `json:"ok"`

	// ErrorType is the ClassifyError label when OK is false
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides additional sizes for the span
	// Example keys: "responseBytes", "violations"
	Counters map[string]int64 `json:"counters,omitempty"`
}

func newTrace(operationID string) *OperationTrace {
	return &OperationTrace{
		OperationID: operationID,
		Spans:       make([]Span, 0, 2),
	}
}

func (t *OperationTrace) addSpan(span Span) {
	t.Spans = append(t.Spans, span)
	t.TotalDurationMs += span.DurationMs
}

// spanTimer measures one stage. A nil trace still reports the duration so
// stage metrics work with tracing disabled.
type spanTimer struct {
	name  string
	start time.Time
	trace *OperationTrace
}

func newSpanTimer(name string, trace *OperationTrace) *spanTimer {
	return &spanTimer{name: name, start: time.Now(), trace: trace}
}

// finish records the span and returns its duration in milliseconds
func (st *spanTimer) finish(err error, counters map[string]int64) int64 {
	duration := time.Since(st.start).Milliseconds()
	if st.trace == nil {
		return duration
	}

	span := Span{
		Name:       st.name,
		DurationMs: duration,
		OK:         err == nil,
		Counters:   counters,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	st.trace.addSpan(span)
	return duration
}
