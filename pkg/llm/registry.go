package llm

import (
	"slices"
	"strings"
)

// Kind identifies a backend family.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
)

// MaxTemperature is the upper bound of the backend's sampling temperature.
// Requests above it (but within the accepted [0, 2]) are clamped.
func (k Kind) MaxTemperature() float64 {
	if k == KindAnthropic {
		return 1.0
	}
	return MaxTemperature
}

// Registration describes how a backend is recognized and reached.
type Registration struct {
	Kind Kind

	// Prefixes are matched against the model identifier; any match selects Kind
	Prefixes []string

	DefaultModel   string
	DefaultBaseURL string

	// CredentialEnv and BaseURLEnv name the environment variables consulted
	// when no explicit value is configured
	CredentialEnv string
	BaseURLEnv    string
}

func (r Registration) matches(model string) bool {
	for _, p := range r.Prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// registrations is ordered by priority. It is never written after package init.
var registrations = [...]Registration{
	{
		Kind:           KindOpenAI,
		Prefixes:       []string{"openai/", "gpt-", "chatgpt-", "o1", "o3", "o4-"},
		DefaultModel:   "gpt-4o-mini",
		DefaultBaseURL: "https://api.openai.com/v1",
		CredentialEnv:  "OPENAI_API_KEY",
		BaseURLEnv:     "OPENAI_BASE_URL",
	},
	{
		Kind:           KindAnthropic,
		Prefixes:       []string{"anthropic/", "claude-"},
		DefaultModel:   "claude-3-5-sonnet-20241022",
		DefaultBaseURL: "https://api.anthropic.com",
		CredentialEnv:  "ANTHROPIC_API_KEY",
		BaseURLEnv:     "ANTHROPIC_BASE_URL",
	},
}

// Detect returns the backend for a model identifier. Registrations are tried in
// priority order and the first matching one wins.
func Detect(model string) (Kind, error) {
	for _, r := range registrations {
		if r.matches(model) {
			return r.Kind, nil
		}
	}
	return "", &UnknownProviderError{Model: model}
}

// ParseKind resolves an explicit provider name such as "openai".
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := Lookup(k); ok {
		return k, nil
	}
	return "", &UnknownProviderError{Provider: name}
}

// Lookup returns the registration for kind.
func Lookup(kind Kind) (Registration, bool) {
	for _, r := range registrations {
		if r.Kind == kind {
			return cloneRegistration(r), true
		}
	}
	return Registration{}, false
}

// Registrations returns a copy of the table in priority order.
func Registrations() []Registration {
	out := make([]Registration, 0, len(registrations))
	for _, r := range registrations {
		out = append(out, cloneRegistration(r))
	}
	return out
}

// DefaultModel is the model used when neither a model nor a provider is given.
func DefaultModel() string {
	return registrations[0].DefaultModel
}

// WireModel strips a vendor prefix ("openai/gpt-4o" -> "gpt-4o") so the
// identifier can be sent to the backend.
func WireModel(model string) string {
	for _, r := range registrations {
		if rest, ok := strings.CutPrefix(model, string(r.Kind)+"/"); ok {
			return rest
		}
	}
	return model
}

func cloneRegistration(r Registration) Registration {
	r.Prefixes = slices.Clone(r.Prefixes)
	return r
}

func kindNames() []string {
	names := make([]string, 0, len(registrations))
	for _, r := range registrations {
		names = append(names, string(r.Kind))
	}
	return names
}
