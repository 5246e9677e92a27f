package llm

import (
	"math"
	"strings"
)

const (
	DefaultTemperature = 0.7
	MaxTemperature     = 2.0
)

// keys owned by the providers; Extra may not override them
var reservedKeys = map[string]bool{
	"model":                 true,
	"messages":              true,
	"system":                true,
	"response_format":       true,
	"stream":                true,
	"temperature":           true,
	"max_tokens":            true,
	"max_completion_tokens": true,
}

// Request is one generation call.
type Request struct {
	Model  string
	Prompt string

	// System is an optional system prompt
	System string

	// Temperature defaults to DefaultTemperature when nil
	Temperature *float64

	// MaxTokens is optional for OpenAI-style backends
	MaxTokens *int

	// Extra is merged into the backend request body as-is
	Extra map[string]any
}

// Validate checks caller input. It performs no I/O.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &InvalidParameterError{Param: "model", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return &InvalidParameterError{Param: "prompt", Reason: "cannot be empty"}
	}
	if r.Temperature != nil {
		t := *r.Temperature
		if math.IsNaN(t) || t < 0 || t > MaxTemperature {
			return &InvalidParameterError{Param: "temperature", Value: t, Reason: "must be within [0, 2]"}
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &InvalidParameterError{Param: "max_tokens", Value: *r.MaxTokens, Reason: "must be positive"}
	}
	for key := range r.Extra {
		if reservedKeys[key] {
			return &InvalidParameterError{Param: key, Reason: "is managed by the client and cannot be passed as an extra option"}
		}
	}
	return nil
}

// EffectiveTemperature returns the requested temperature or the default.
func (r *Request) EffectiveTemperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

func mergeExtra(body map[string]any, extra map[string]any) {
	for k, v := range extra {
		body[k] = v
	}
}
