package one

import (
	"github.com/dan-solli/one/pkg/llm"
	"github.com/dan-solli/one/pkg/schema"
)

// Type re-exports for caller convenience

// Kind is re-exported from llm package
type Kind = llm.Kind

const (
	KindOpenAI    = llm.KindOpenAI
	KindAnthropic = llm.KindAnthropic
)

// Descriptor is re-exported from schema package
type Descriptor = schema.Descriptor

// Error types re-exported from llm and schema packages
type (
	UnknownProviderError           = llm.UnknownProviderError
	MissingCredentialError         = llm.MissingCredentialError
	InvalidParameterError          = llm.InvalidParameterError
	TransportError                 = llm.TransportError
	EmptyResponseError             = llm.EmptyResponseError
	MalformedStructuredOutputError = llm.MalformedStructuredOutputError
	ValidationError                = schema.ValidationError
)
