package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dan-solli/one/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIReply(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

// newOpenAIServer records the decoded request body and answers with reply.
func newOpenAIServer(t *testing.T, reply any, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected application/json, got %s", r.Header.Get("Content-Type"))
		}

		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, captured); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestOpenAI(url string) *OpenAIProvider {
	p := NewOpenAIProvider("test-key")
	p.BaseURL = url
	return p
}

func TestOpenAIGenerateText_Success(t *testing.T) {
	var body map[string]any
	server := newOpenAIServer(t, openAIReply("Paris"), &body)

	result, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{
		Model:  "gpt-4o-mini",
		Prompt: "What is the capital of France?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", result)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, 0.7, body["temperature"])
	assert.NotContains(t, body, "max_tokens")
	assert.NotContains(t, body, "response_format")

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "What is the capital of France?"}, messages[0])
}

func TestOpenAIGenerateText_ParameterMapping(t *testing.T) {
	var body map[string]any
	server := newOpenAIServer(t, openAIReply("Response"), &body)

	temp := 0.5
	maxTokens := 100
	_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{
		Model:       "openai/gpt-4",
		Prompt:      "Test prompt",
		System:      "be brief",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Extra:       map[string]any{"top_p": 0.9, "seed": 7},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", body["model"])
	assert.Equal(t, 0.5, body["temperature"])
	assert.Equal(t, float64(100), body["max_tokens"])
	assert.Equal(t, 0.9, body["top_p"])
	assert.Equal(t, float64(7), body["seed"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "be brief"}, messages[0])
}

func TestOpenAIGenerateText_ReasoningModelTokens(t *testing.T) {
	var body map[string]any
	server := newOpenAIServer(t, openAIReply("ok"), &body)

	maxTokens := 50
	_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{
		Model: "o3-mini", Prompt: "hi", MaxTokens: &maxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(50), body["max_completion_tokens"])
	assert.NotContains(t, body, "max_tokens")
}

func TestOpenAIGenerateStructured_ResponseFormat(t *testing.T) {
	var body map[string]any
	server := newOpenAIServer(t, openAIReply(`{"name":"John","age":30}`), &body)

	d := schema.MustNew("Person", schema.String("name"), schema.Integer("age"))
	raw, err := newTestOpenAI(server.URL).GenerateStructured(context.Background(), &Request{
		Model: "gpt-4o-mini", Prompt: "Extract: John is 30",
	}, d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"John","age":30}`, string(raw))

	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])

	js := format["json_schema"].(map[string]any)
	assert.Equal(t, "Person", js["name"])
	assert.Equal(t, true, js["strict"])

	expected, err := d.JSONSchema()
	require.NoError(t, err)
	actual, err := json.Marshal(js["schema"])
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(actual))
}

func TestOpenAIGenerateStructured_NotJSON(t *testing.T) {
	server := newOpenAIServer(t, openAIReply("Sure! John is 30."), nil)

	d := schema.MustNew("Person", schema.String("name"))
	_, err := newTestOpenAI(server.URL).GenerateStructured(context.Background(), &Request{
		Model: "gpt-4o-mini", Prompt: "x",
	}, d)

	var malformed *MalformedStructuredOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, KindOpenAI, malformed.Provider)
	assert.Equal(t, "Sure! John is 30.", malformed.Content)
}

func TestOpenAIGenerateText_EmptyResponses(t *testing.T) {
	tests := []struct {
		name   string
		reply  any
		reason string
	}{
		{"no choices", map[string]any{"choices": []any{}}, "no completion choices"},
		{"blank content", openAIReply("   "), "no content"},
		{"refusal", map[string]any{"choices": []any{map[string]any{
			"message": map[string]any{"role": "assistant", "content": "", "refusal": "I can't help with that"},
		}}}, "model refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAIServer(t, tt.reply, nil)

			_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{Model: "gpt-4o", Prompt: "x"})

			var empty *EmptyResponseError
			require.ErrorAs(t, err, &empty)
			assert.Contains(t, empty.Reason, tt.reason)
		})
	}
}

func TestOpenAIGenerateText_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{Model: "gpt-4o", Prompt: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode())
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestOpenAIGenerateText_APIErrorBody(t *testing.T) {
	server := newOpenAIServer(t, map[string]any{
		"error": map[string]any{"message": "Invalid API key", "type": "invalid_request_error"},
	}, nil)

	_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{Model: "gpt-4o", Prompt: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestOpenAIGenerateText_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not valid json"))
	}))
	defer server.Close()

	_, err := newTestOpenAI(server.URL).GenerateText(context.Background(), &Request{Model: "gpt-4o", Prompt: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestOpenAIGenerateText_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestOpenAI(server.URL).GenerateText(ctx, &Request{Model: "gpt-4o", Prompt: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOpenAIGenerateText_InvalidParameterSkipsTransport(t *testing.T) {
	calls := 0
	p := NewOpenAIProvider("test-key")
	p.Transport = TransportFunc(func(ctx context.Context, req *TransportRequest) ([]byte, error) {
		calls++
		return nil, errors.New("should not be called")
	})

	temp := 3.0
	_, err := p.GenerateText(context.Background(), &Request{Model: "gpt-4o", Prompt: "x", Temperature: &temp})

	var ipe *InvalidParameterError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "temperature", ipe.Param)
	assert.Equal(t, 0, calls)
}
