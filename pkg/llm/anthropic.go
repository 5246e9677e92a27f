package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dan-solli/one/pkg/schema"
)

const (
	anthropicVersion         = "2023-06-01"
	anthropicDefaultMaxToken = 1024
)

// structuredInstruction is the system prompt used to request JSON output
const structuredInstruction = `You must respond with valid JSON that matches this schema:
%s

Only return the JSON object, no other text.`

// AnthropicProvider implements Provider for the Anthropic Messages API.
// The API has no schema-constrained mode: structured output is requested through
// the system prompt and the JSON object is extracted from the reply.
type AnthropicProvider struct {
	APIKey    string
	BaseURL   string
	Transport Transport

	// DefaultMaxTokens is sent when the request sets none; the API requires it
	DefaultMaxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	reg, _ := Lookup(KindAnthropic)
	return &AnthropicProvider{
		APIKey:           apiKey,
		BaseURL:          reg.DefaultBaseURL,
		Transport:        NewHTTPTransport(0),
		DefaultMaxTokens: anthropicDefaultMaxToken,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicProvider) Kind() Kind { return KindAnthropic }

// GenerateText sends a message and returns the concatenated text blocks.
func (a *AnthropicProvider) GenerateText(ctx context.Context, req *Request) (string, error) {
	return a.complete(ctx, req, req.System)
}

// GenerateStructured embeds the JSON Schema in the system prompt and extracts the
// JSON object from the reply. The result is not guaranteed to match the schema.
func (a *AnthropicProvider) GenerateStructured(ctx context.Context, req *Request, d *schema.Descriptor) (json.RawMessage, error) {
	if d == nil {
		return nil, &InvalidParameterError{Param: "schema", Reason: "cannot be nil for structured output"}
	}

	doc, err := d.JSONSchemaIndent()
	if err != nil {
		return nil, fmt.Errorf("render schema %s: %w", d.Name(), err)
	}

	system := fmt.Sprintf(structuredInstruction, doc)
	if req.System != "" {
		system = req.System + "\n\n" + system
	}

	text, err := a.complete(ctx, req, system)
	if err != nil {
		return nil, err
	}

	obj, err := ExtractJSONObject(text)
	if err != nil {
		return nil, &MalformedStructuredOutputError{Provider: KindAnthropic, Content: text, Err: err}
	}
	return obj, nil
}

func (a *AnthropicProvider) complete(ctx context.Context, req *Request, system string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	resp, err := send(ctx, KindAnthropic, a.Transport, a.BaseURL+"/v1/messages", map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}, a.buildBody(req, system))
	if err != nil {
		return "", err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(resp, &apiResp); err != nil {
		return "", &TransportError{Provider: KindAnthropic, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if apiResp.Error != nil {
		return "", &TransportError{Provider: KindAnthropic, Err: fmt.Errorf("Anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)}
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		reason := "no text content returned"
		if apiResp.StopReason != "" {
			reason += " (stop_reason: " + apiResp.StopReason + ")"
		}
		return "", &EmptyResponseError{Provider: KindAnthropic, Reason: reason}
	}

	return text, nil
}

func (a *AnthropicProvider) buildBody(req *Request, system string) map[string]any {
	maxTokens := a.DefaultMaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxToken
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	body := map[string]any{}
	mergeExtra(body, req.Extra)

	body["model"] = WireModel(req.Model)
	body["max_tokens"] = maxTokens
	body["temperature"] = math.Min(req.EffectiveTemperature(), KindAnthropic.MaxTemperature())
	body["messages"] = []anthropicMessage{{Role: "user", Content: req.Prompt}}
	if system != "" {
		body["system"] = system
	}

	return body
}
