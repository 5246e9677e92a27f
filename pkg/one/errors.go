package one

import (
	"context"
	"errors"
	"net"

	"github.com/dan-solli/one/pkg/llm"
	"github.com/dan-solli/one/pkg/schema"
)

// Error type labels returned by ClassifyError
const (
	ErrTypeUnknownProvider   = "unknown_provider"
	ErrTypeMissingCredential = "missing_credential"
	ErrTypeInvalidParameter  = "invalid_parameter"
	ErrTypeTimeout           = "timeout"
	ErrTypeCanceled          = "canceled"
	ErrTypeTransport         = "transport"
	ErrTypeEmptyResponse     = "empty_response"
	ErrTypeMalformedOutput   = "malformed_output"
	ErrTypeSchemaValidation  = "schema_validation"
	ErrTypeUnknown           = "unknown"
)

// ClassifyError maps an error to a stable label for metrics, traces and
// history. It returns "" for nil.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var (
		unknownProvider *llm.UnknownProviderError
		missingCred     *llm.MissingCredentialError
		invalidParam    *llm.InvalidParameterError
		transport       *llm.TransportError
		empty           *llm.EmptyResponseError
		malformed       *llm.MalformedStructuredOutputError
		validation      *schema.ValidationError
		netErr          net.Error
	)

	switch {
	case errors.As(err, &unknownProvider):
		return ErrTypeUnknownProvider
	case errors.As(err, &missingCred):
		return ErrTypeMissingCredential
	case errors.As(err, &invalidParam):
		return ErrTypeInvalidParameter
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrTypeCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTypeTimeout
	case errors.As(err, &transport):
		return ErrTypeTransport
	case errors.As(err, &empty):
		return ErrTypeEmptyResponse
	case errors.As(err, &malformed):
		return ErrTypeMalformedOutput
	case errors.As(err, &validation):
		return ErrTypeSchemaValidation
	}
	return ErrTypeUnknown
}
