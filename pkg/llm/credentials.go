package llm

import (
	"os"
	"strings"
)

// CredentialSource looks up the API key for a backend.
type CredentialSource interface {
	Credential(kind Kind) (string, bool)
}

// EnvCredentials reads keys from the registration's environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY).
type EnvCredentials struct{}

func (EnvCredentials) Credential(kind Kind) (string, bool) {
	reg, ok := Lookup(kind)
	if !ok {
		return "", false
	}
	v, ok := os.LookupEnv(reg.CredentialEnv)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// StaticCredentials serves keys from a fixed map.
type StaticCredentials map[Kind]string

func (s StaticCredentials) Credential(kind Kind) (string, bool) {
	v, ok := s[kind]
	return v, ok && v != ""
}
