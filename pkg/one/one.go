// Package one provides a single provider-agnostic interface for remote LLM text
// generation, returning either free-form text or output validated against a
// caller-supplied schema.
package one

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/dan-solli/one/pkg/history"
	"github.com/dan-solli/one/pkg/llm"
	"github.com/dan-solli/one/pkg/metrics"
	"github.com/dan-solli/one/pkg/schema"
	"github.com/dan-solli/one/pkg/trace"
	"github.com/google/uuid"
)

// Generation modes reported in metrics, traces and history
const (
	ModeText       = "text"
	ModeStructured = "structured"
)

// HistoryRecorder receives one entry per call. *history.SQLiteStore satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, entry *history.Entry) error
	Count(ctx context.Context) (int64, error)
}

// Config holds configuration for a Model
type Config struct {
	// Model identifier, e.g. "gpt-4o-mini" or "anthropic/claude-3-5-sonnet-20241022".
	// Empty selects the provider's default model (default: "gpt-4o-mini")
	Model string

	// Provider forces a backend ("openai", "anthropic") instead of detecting it from Model
	Provider string

	// APIKey takes precedence over Credentials and the environment
	APIKey string

	// Credentials is consulted when APIKey is empty, before the environment
	Credentials llm.CredentialSource

	// BaseURL overrides the backend endpoint (default: OPENAI_BASE_URL or
	// ANTHROPIC_BASE_URL, then the public API)
	BaseURL string

	// Transport replaces the default HTTP transport
	Transport llm.Transport

	// Timeout for the default HTTP transport (default: 60s)
	Timeout time.Duration

	// Metrics collector (default: no-op)
	Metrics metrics.Collector

	// TraceExporter receives one record per call (optional)
	TraceExporter trace.Exporter

	// TraceEnabled attaches an OperationTrace to every Result
	TraceEnabled bool

	// History receives one entry per call (optional)
	History HistoryRecorder
}

// Result is the outcome of a Generate call. Exactly one of Text and Value is set.
type Result struct {
	// Text is the reply of a call without schema
	Text string

	// Value is the validated object of a structured call
	Value map[string]any

	// Raw is the JSON object extracted from the reply, before validation
	Raw json.RawMessage

	// Trace is set when Config.TraceEnabled is true
	Trace *OperationTrace
}

// Model is the main entry point. It is safe for concurrent use.
type Model struct {
	config   Config
	kind     llm.Kind
	model    string
	baseURL  string
	provider llm.Provider
	metrics  metrics.Collector
	logger   *slog.Logger
}

// New resolves the provider and credential for cfg and returns a ready Model.
func New(cfg Config) (*Model, error) {
	kind, model, err := resolveModel(cfg.Model, cfg.Provider)
	if err != nil {
		return nil, err
	}

	reg, _ := llm.Lookup(kind)

	apiKey, err := resolveCredential(reg, cfg.APIKey, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	transport := cfg.Transport
	if transport == nil {
		transport = llm.NewHTTPTransport(cfg.Timeout)
	}

	baseURL := resolveBaseURL(reg, cfg.BaseURL)
	provider, err := llm.NewProvider(kind, apiKey, llm.WithBaseURL(baseURL), llm.WithTransport(transport))
	if err != nil {
		return nil, err
	}

	cfg.Model = model
	m := newModel(cfg, kind, provider)
	m.baseURL = baseURL
	return m, nil
}

// NewWithProvider creates a Model around an existing provider, skipping
// detection and credential lookup.
func NewWithProvider(cfg Config, provider llm.Provider) (*Model, error) {
	if provider == nil {
		return nil, &llm.InvalidParameterError{Param: "provider", Reason: "cannot be nil"}
	}

	kind := provider.Kind()
	if strings.TrimSpace(cfg.Model) == "" {
		reg, ok := llm.Lookup(kind)
		if !ok {
			return nil, &llm.InvalidParameterError{Param: "model", Reason: "cannot be empty for provider " + string(kind)}
		}
		cfg.Model = reg.DefaultModel
	}

	return newModel(cfg, kind, provider), nil
}

func newModel(cfg Config, kind llm.Kind, provider llm.Provider) *Model {
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	return &Model{
		config:   cfg,
		kind:     kind,
		model:    strings.TrimSpace(cfg.Model),
		provider: provider,
		metrics:  collector,
	}
}

// WithLogger sets the logger and returns the Model for chaining.
// A nil logger disables logging. The resolved configuration is logged once at
// Info level; credentials are never logged.
func (m *Model) WithLogger(logger *slog.Logger) *Model {
	m.logger = logger
	if logger != nil {
		logger.Info("model configured",
			"provider", string(m.kind),
			"model", m.model,
			"base_url", m.baseURL,
			"trace_enabled", m.config.TraceEnabled,
			"trace_export", m.config.TraceExporter != nil,
			"history", m.config.History != nil,
		)
	}
	return m
}

// Kind returns the resolved backend family
func (m *Model) Kind() llm.Kind {
	return m.kind
}

// ModelID returns the model identifier sent with every request
func (m *Model) ModelID() string {
	return m.model
}

// Provider returns the underlying provider
func (m *Model) Provider() llm.Provider {
	return m.provider
}

// Generate sends prompt to the backend. Without WithSchema the reply text is
// returned in Result.Text. With a schema the extracted JSON object is always
// validated and returned in Result.Value; a mismatch is a *ValidationError.
func (m *Model) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*Result, error) {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return m.generate(ctx, "generate", prompt, &o)
}

// GenerateInto derives a schema from out, which must be a non-nil pointer to a
// struct, and decodes the validated reply into it. A WithSchema option is
// ignored.
func (m *Model) GenerateInto(ctx context.Context, prompt string, out any, opts ...GenerateOption) error {
	rv := reflect.ValueOf(out)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &llm.InvalidParameterError{Param: "out", Reason: "must be a non-nil pointer to a struct"}
	}

	d, err := schema.FromValue(out)
	if err != nil {
		return &llm.InvalidParameterError{Param: "out", Value: rv.Type().String(), Reason: err.Error()}
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.schema = d

	res, err := m.generate(ctx, "generate_into", prompt, &o)
	if err != nil {
		return err
	}
	return d.Decode(res.Raw, out)
}

// call carries what observe needs after a generation finished
type call struct {
	operation   string
	operationID string
	mode        string
	schemaName  string
	promptHash  string
	start       time.Time
	durationMs  int64
	trace       *OperationTrace
	err         error
}

func (m *Model) generate(ctx context.Context, operation, prompt string, o *generateOptions) (*Result, error) {
	c := call{
		operation:   operation,
		operationID: uuid.NewString(),
		mode:        ModeText,
		start:       time.Now(),
	}
	if o.schema != nil {
		c.mode = ModeStructured
		c.schemaName = o.schema.Name()
	}
	if m.config.TraceEnabled || m.config.TraceExporter != nil {
		c.trace = newTrace(c.operationID)
	}

	req := &llm.Request{
		Model:       m.model,
		Prompt:      prompt,
		System:      o.system,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Extra:       o.extra,
	}

	result, err := m.run(ctx, req, o.schema, c.trace)

	c.durationMs = time.Since(c.start).Milliseconds()
	c.err = err
	if m.config.History != nil {
		c.promptHash = history.HashPrompt(prompt)
	}
	m.observe(ctx, c)

	if err != nil {
		return nil, err
	}
	if m.config.TraceEnabled {
		result.Trace = c.trace
	}
	return result, nil
}

func (m *Model) run(ctx context.Context, req *llm.Request, d *schema.Descriptor, tr *OperationTrace) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if t := req.EffectiveTemperature(); t > m.kind.MaxTemperature() && m.logger != nil {
		m.logger.Warn("temperature clamped to backend maximum",
			"provider", string(m.kind),
			"requested", t,
			"applied", m.kind.MaxTemperature(),
		)
	}

	if d == nil {
		timer := newSpanTimer(StageRequest, tr)
		text, err := m.provider.GenerateText(ctx, req)
		m.metrics.RecordStage(ctx, string(m.kind), StageRequest, timer.finish(err, map[string]int64{"responseBytes": int64(len(text))}))
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	}

	timer := newSpanTimer(StageRequest, tr)
	raw, err := m.provider.GenerateStructured(ctx, req, d)
	m.metrics.RecordStage(ctx, string(m.kind), StageRequest, timer.finish(err, map[string]int64{"responseBytes": int64(len(raw))}))
	if err != nil {
		return nil, err
	}

	timer = newSpanTimer(StageValidate, tr)
	value, err := d.Validate(raw)
	var counters map[string]int64
	if ve, ok := schema.AsValidationError(err); ok {
		counters = map[string]int64{"violations": int64(len(ve.Violations))}
	}
	m.metrics.RecordStage(ctx, string(m.kind), StageValidate, timer.finish(err, counters))
	if err != nil {
		return nil, err
	}

	return &Result{Value: value, Raw: raw}, nil
}

// observe reports a finished call to metrics, logs, trace export and history.
// Sink failures are logged and never change the call's outcome.
func (m *Model) observe(ctx context.Context, c call) {
	provider := string(m.kind)
	errType := ClassifyError(c.err)
	status := history.StatusSuccess
	if c.err != nil {
		status = history.StatusError
		m.metrics.RecordError(ctx, provider, errType)
	}
	m.metrics.RecordGeneration(ctx, provider, c.mode, status, c.durationMs)

	if m.logger != nil {
		attrs := []any{
			"operation_id", c.operationID,
			"provider", provider,
			"model", m.model,
			"mode", c.mode,
			"duration_ms", c.durationMs,
		}
		if c.err != nil {
			m.logger.Debug("generation failed", append(attrs, "error_type", errType)...)
		} else {
			m.logger.Debug("generation completed", attrs...)
		}
	}

	// sinks run even when the caller's context is already done
	sinkCtx := context.WithoutCancel(ctx)

	if m.config.TraceExporter != nil && c.trace != nil {
		if err := m.config.TraceExporter.Export(sinkCtx, m.traceRecord(c, status, errType)); err != nil {
			m.warn("trace export failed", "operation_id", c.operationID, "error", err)
		}
	}

	if m.config.History != nil {
		entry := &history.Entry{
			ID:           c.operationID,
			CreatedAt:    c.start,
			Provider:     provider,
			Model:        m.model,
			Mode:         c.mode,
			Status:       status,
			ErrorType:    errType,
			DurationMs:   c.durationMs,
			PromptSHA256: c.promptHash,
			SchemaName:   c.schemaName,
		}
		if err := m.config.History.Record(sinkCtx, entry); err != nil {
			m.warn("history record failed", "operation_id", c.operationID, "error", err)
			return
		}
		if n, err := m.config.History.Count(sinkCtx); err == nil {
			m.metrics.SetHistoryCount(sinkCtx, n)
		}
	}
}

func (m *Model) traceRecord(c call, status, errType string) *trace.TraceRecord {
	spans := make([]trace.SpanRecord, 0, len(c.trace.Spans))
	for _, s := range c.trace.Spans {
		spans = append(spans, trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			ErrorType:  s.ErrorType,
			Counters:   s.Counters,
		})
	}

	return &trace.TraceRecord{
		Timestamp:   c.start,
		OperationID: c.operationID,
		Operation:   c.operation,
		Provider:    string(m.kind),
		Model:       m.model,
		Mode:        c.mode,
		SchemaName:  c.schemaName,
		DurationMs:  c.durationMs,
		Status:      status,
		Spans:       spans,
		ErrorType:   errType,
	}
}

func (m *Model) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func resolveModel(model, provider string) (llm.Kind, string, error) {
	model = strings.TrimSpace(model)

	if strings.TrimSpace(provider) != "" {
		kind, err := llm.ParseKind(provider)
		if err != nil {
			return "", "", err
		}
		if model == "" {
			reg, _ := llm.Lookup(kind)
			model = reg.DefaultModel
		}
		return kind, model, nil
	}

	if model == "" {
		model = llm.DefaultModel()
	}
	kind, err := llm.Detect(model)
	if err != nil {
		return "", "", err
	}
	return kind, model, nil
}

func resolveCredential(reg llm.Registration, apiKey string, source llm.CredentialSource) (string, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return key, nil
	}
	if source != nil {
		if key, ok := source.Credential(reg.Kind); ok {
			return key, nil
		}
	}
	if key, ok := (llm.EnvCredentials{}).Credential(reg.Kind); ok {
		return key, nil
	}
	return "", &llm.MissingCredentialError{Provider: reg.Kind, EnvVar: reg.CredentialEnv}
}

func resolveBaseURL(reg llm.Registration, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if v := strings.TrimSpace(os.Getenv(reg.BaseURLEnv)); v != "" {
		return v
	}
	return reg.DefaultBaseURL
}
