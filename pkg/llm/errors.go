package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UnknownProviderError is returned when a model identifier or provider name does
// not resolve to a registered backend.
type UnknownProviderError struct {
	// Model is set when detection by model identifier failed
	Model string
	// Provider is set when an explicit provider name was not recognized
	Provider string
}

func (e *UnknownProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("unknown provider %q: supported providers: %s", e.Provider, strings.Join(kindNames(), ", "))
	}
	return fmt.Sprintf("no provider matches model %q", e.Model)
}

// MissingCredentialError is returned when no API key is available for a provider.
type MissingCredentialError struct {
	Provider Kind
	EnvVar   string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential for %s: pass an API key or set %s", e.Provider, e.EnvVar)
}

// InvalidParameterError reports caller input rejected before any network call.
type InvalidParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// TransportError wraps any failure of the transport collaborator, including
// context cancellation and error payloads returned by the backend.
type TransportError struct {
	Provider Kind
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm %s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failed call, or 0 when the call never
// produced a response.
func (e *TransportError) StatusCode() int {
	var se *HTTPStatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

// Timeout reports whether the call failed because its deadline expired.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// EmptyResponseError is returned when the backend answered without usable content.
type EmptyResponseError struct {
	Provider Kind
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("llm %s: empty response: %s", e.Provider, e.Reason)
}

// MalformedStructuredOutputError is returned when no JSON object could be
// extracted from a structured reply.
type MalformedStructuredOutputError struct {
	Provider Kind
	// Content is the raw reply text
	Content string
	Err     error
}

const maxErrorContent = 200

func (e *MalformedStructuredOutputError) Error() string {
	content := e.Content
	if len(content) > maxErrorContent {
		content = content[:maxErrorContent] + "..."
	}
	return fmt.Sprintf("llm %s: malformed structured output: %v (content: %q)", e.Provider, e.Err, content)
}

func (e *MalformedStructuredOutputError) Unwrap() error { return e.Err }
