package one

import (
	"maps"

	"github.com/dan-solli/one/pkg/schema"
)

// GenerateOption configures a single Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	schema      *schema.Descriptor
	system      string
	temperature *float64
	maxTokens   *int
	extra       map[string]any
}

// WithSchema requests structured output validated against d.
func WithSchema(d *schema.Descriptor) GenerateOption {
	return func(o *generateOptions) {
		o.schema = d
	}
}

// WithTemperature sets the sampling temperature, within [0, 2].
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) {
		o.temperature = &t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) {
		o.maxTokens = &n
	}
}

// WithSystem sets the system prompt.
func WithSystem(prompt string) GenerateOption {
	return func(o *generateOptions) {
		o.system = prompt
	}
}

// WithExtra passes backend options through to the request body. Repeated calls
// merge; keys the client manages are rejected at call time.
func WithExtra(extra map[string]any) GenerateOption {
	return func(o *generateOptions) {
		if o.extra == nil {
			o.extra = make(map[string]any, len(extra))
		}
		maps.Copy(o.extra, extra)
	}
}
