package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dan-solli/one/pkg/schema"
)

// OpenAIProvider implements Provider for OpenAI's Chat Completions API.
// Structured output uses the native json_schema response format in strict mode.
type OpenAIProvider struct {
	APIKey    string
	BaseURL   string
	Transport Transport
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	reg, _ := Lookup(KindOpenAI)
	return &OpenAIProvider{
		APIKey:    apiKey,
		BaseURL:   reg.DefaultBaseURL,
		Transport: NewHTTPTransport(0),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *OpenAIProvider) Kind() Kind { return KindOpenAI }

// GenerateText sends a chat completion and returns the assistant message.
func (o *OpenAIProvider) GenerateText(ctx context.Context, req *Request) (string, error) {
	return o.complete(ctx, req, nil)
}

// GenerateStructured attaches d as a strict json_schema response format. The
// backend enforces the schema, so the reply only needs to be decoded.
func (o *OpenAIProvider) GenerateStructured(ctx context.Context, req *Request, d *schema.Descriptor) (json.RawMessage, error) {
	if d == nil {
		return nil, &InvalidParameterError{Param: "schema", Reason: "cannot be nil for structured output"}
	}

	content, err := o.complete(ctx, req, d)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace([]byte(content))
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, &MalformedStructuredOutputError{
			Provider: KindOpenAI,
			Content:  content,
			Err:      errors.New("reply is not a JSON object"),
		}
	}
	return json.RawMessage(trimmed), nil
}

func (o *OpenAIProvider) complete(ctx context.Context, req *Request, d *schema.Descriptor) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	body := o.buildBody(req, d)

	resp, err := send(ctx, KindOpenAI, o.Transport, o.BaseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.APIKey,
	}, body)
	if err != nil {
		return "", err
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(resp, &apiResp); err != nil {
		return "", &TransportError{Provider: KindOpenAI, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if apiResp.Error != nil {
		return "", &TransportError{Provider: KindOpenAI, Err: fmt.Errorf("OpenAI API error: %s", apiResp.Error.Message)}
	}

	if len(apiResp.Choices) == 0 {
		return "", &EmptyResponseError{Provider: KindOpenAI, Reason: "no completion choices returned"}
	}

	msg := apiResp.Choices[0].Message
	if msg.Refusal != "" {
		return "", &EmptyResponseError{Provider: KindOpenAI, Reason: "model refused: " + msg.Refusal}
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", &EmptyResponseError{Provider: KindOpenAI, Reason: "completion has no content"}
	}

	return msg.Content, nil
}

func (o *OpenAIProvider) buildBody(req *Request, d *schema.Descriptor) map[string]any {
	model := WireModel(req.Model)

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := map[string]any{}
	mergeExtra(body, req.Extra)

	body["model"] = model
	body["messages"] = messages
	body["temperature"] = req.EffectiveTemperature()

	if req.MaxTokens != nil {
		// reasoning models reject max_tokens
		if isReasoningModel(model) {
			body["max_completion_tokens"] = *req.MaxTokens
		} else {
			body["max_tokens"] = *req.MaxTokens
		}
	}

	if d != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   d.Name(),
				"schema": d.Document(),
				"strict": true,
			},
		}
	}

	return body
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}
