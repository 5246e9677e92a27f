// Package llm provides the backend providers: request mapping, transport calls
// and structured-output strategies for each supported API family.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dan-solli/one/pkg/schema"
)

// Provider defines the interface every backend family implements.
// Implementations hold no per-call state and are safe for concurrent use.
type Provider interface {
	// Kind reports the backend family
	Kind() Kind

	// GenerateText sends a plain completion request and returns the reply text
	GenerateText(ctx context.Context, req *Request) (string, error)

	// GenerateStructured requests output shaped by d and returns the raw JSON
	// object before validation
	GenerateStructured(ctx context.Context, req *Request, d *schema.Descriptor) (json.RawMessage, error)
}

// Option configures a provider built with NewProvider.
type Option func(*options)

type options struct {
	baseURL   string
	transport Transport
}

// WithBaseURL overrides the backend endpoint root.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// NewProvider builds the provider for kind.
func NewProvider(kind Kind, apiKey string, opts ...Option) (Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch kind {
	case KindOpenAI:
		p := NewOpenAIProvider(apiKey)
		o.apply(&p.BaseURL, &p.Transport)
		return p, nil
	case KindAnthropic:
		p := NewAnthropicProvider(apiKey)
		o.apply(&p.BaseURL, &p.Transport)
		return p, nil
	}
	return nil, &UnknownProviderError{Provider: string(kind)}
}

func (o options) apply(baseURL *string, transport *Transport) {
	if o.baseURL != "" {
		*baseURL = o.baseURL
	}
	if o.transport != nil {
		*transport = o.transport
	}
}

// send marshals body, hands it to the transport and wraps failures.
func send(ctx context.Context, kind Kind, t Transport, url string, header map[string]string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		// only caller-supplied extras can fail to encode
		return nil, &InvalidParameterError{Param: "extra", Reason: fmt.Sprintf("cannot be encoded: %v", err)}
	}

	req := &TransportRequest{URL: url, Header: make(http.Header, len(header)), Body: payload}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := t.Send(ctx, req)
	if err != nil {
		return nil, &TransportError{Provider: kind, Err: err}
	}
	return resp, nil
}
