package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dan-solli/one/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_BASE_URL",
	"ONE_MODEL", "ONE_PROVIDER", "ONE_TEMPERATURE", "ONE_MAX_TOKENS", "ONE_SYSTEM",
	"ONE_TIMEOUT", "ONE_OPENAI_API_KEY", "ONE_ANTHROPIC_API_KEY", "ONE_OPENAI_BASE_URL",
	"ONE_ANTHROPIC_BASE_URL", "ONE_HISTORY_PATH", "ONE_TRACE_PATH", "ONE_TRACE_ENABLED",
	"ONE_TRACE_PARTITION",
	"DEBUG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// openAIServer replies with content and records the last request body.
func openAIServer(t *testing.T, content string, body *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body != nil {
			_ = json.NewDecoder(r.Body).Decode(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseField(t *testing.T) {
	tests := []struct {
		def      string
		kind     schema.Kind
		required bool
		items    schema.Kind
		enum     []string
	}{
		{"name:string", schema.KindString, true, "", nil},
		{"age:int", schema.KindInteger, true, "", nil},
		{"score:number?", schema.KindNumber, false, "", nil},
		{"ok:bool", schema.KindBoolean, true, "", nil},
		{"tags:string[]", schema.KindArray, true, schema.KindString, nil},
		{"ids:integer[]?", schema.KindArray, false, schema.KindInteger, nil},
		{"level:string=low|high", schema.KindString, true, "", []string{"low", "high"}},
		{"mood:string?=happy| sad", schema.KindString, false, "", []string{"happy", "sad"}},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			f, err := parseField(tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.required, f.Required)
			assert.Equal(t, tt.enum, f.Enum)
			if tt.items != "" {
				require.NotNil(t, f.Items)
				assert.Equal(t, tt.items, f.Items.Kind)
			}
		})
	}
}

func TestParseField_Errors(t *testing.T) {
	for _, def := range []string{"name", ":string", "x:date", "n:int=1|2"} {
		_, err := parseField(def)
		assert.Error(t, err, def)
	}
}

func TestParseFields_Duplicate(t *testing.T) {
	_, err := parseFields("response", []string{"a:string", "a:int"})
	assert.Error(t, err)
}

func TestParseExtra(t *testing.T) {
	extra, err := parseExtra([]string{"top_p=0.5", "user=alice", `stop=["\n"]`})
	require.NoError(t, err)
	assert.Equal(t, 0.5, extra["top_p"])
	assert.Equal(t, "alice", extra["user"])
	assert.Equal(t, []any{"\n"}, extra["stop"])

	_, err = parseExtra([]string{"novalue"})
	assert.Error(t, err)
}

func TestDetectCommand(t *testing.T) {
	clearEnv(t)

	out, err := execute(t, "", "detect", "claude-3-haiku-20240307")
	require.NoError(t, err)
	assert.Contains(t, out, "anthropic")
	assert.Contains(t, out, "ANTHROPIC_API_KEY")

	out, err = execute(t, "", "detect")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "claude-")

	_, err = execute(t, "", "detect", "llama-3")
	assert.Error(t, err)
}

func TestGenerateCommand_Text(t *testing.T) {
	clearEnv(t)
	var body map[string]any
	srv := openAIServer(t, "Hello there", &body)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	out, err := execute(t, "", "generate", "Say hello", "--temperature", "0.3", "--system", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, 0.3, body["temperature"])
	assert.NotContains(t, body, "response_format")
}

func TestGenerateCommand_Stdin(t *testing.T) {
	clearEnv(t)
	var body map[string]any
	srv := openAIServer(t, "ok", &body)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	_, err := execute(t, "prompt from stdin", "generate", "-")
	require.NoError(t, err)

	messages := body["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	assert.Equal(t, "prompt from stdin", last["content"])
}

func TestGenerateCommand_Structured(t *testing.T) {
	clearEnv(t)
	var body map[string]any
	srv := openAIServer(t, `{"name":"John Smith","age":30}`, &body)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	out, err := execute(t, "", "generate", "Extract: John Smith is 30",
		"--field", "name:string", "--field", "age:integer", "--schema-name", "Person")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "John Smith", got["name"])
	assert.Equal(t, float64(30), got["age"])

	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
}

func TestGenerateCommand_ValidationError(t *testing.T) {
	clearEnv(t)
	srv := openAIServer(t, `{"name":1}`, nil)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	_, err := execute(t, "", "generate", "x", "--field", "name:string", "--field", "age:integer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age")
	assert.Contains(t, err.Error(), "name")
}

func TestGenerateCommand_MissingCredential(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "generate", "hi", "--model", "claude-3-haiku-20240307")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestGenerateCommand_InvalidTemperature(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := execute(t, "", "generate", "hi", "--temperature", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}

func TestHistoryCommand(t *testing.T) {
	clearEnv(t)
	srv := openAIServer(t, "fine", nil)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "history", "--history", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no calls recorded")

	_, err = execute(t, "", "generate", "hi", "--history", db)
	require.NoError(t, err)

	out, err = execute(t, "", "history", "--history", db)
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "success")

	out, err = execute(t, "", "history", "--history", db, "--status", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "no calls recorded")
}

func TestHistoryCommand_NoPath(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "", "history")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	clearEnv(t)

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version:")

	out, err = execute(t, "", "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"gitVersion"`)
}

func TestTraceCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "traces.jsonl")
	line := `{"timestamp":"2026-01-14T10:30:00Z","operationId":"3f2a","operation":"generate","provider":"anthropic",` +
		`"model":"claude-3-haiku-20240307","mode":"structured","schemaName":"Person","durationMs":812,"status":"error",` +
		`"errorType":"schema_validation","spans":[{"name":"request","durationMs":790,"ok":true,"counters":{"responseBytes":64}},` +
		`{"name":"validate","durationMs":1,"ok":false,"errorType":"schema_validation","counters":{"violations":2}}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "traces.anthropic.jsonl"), []byte(line+"\n"), 0644))

	out, err := execute(t, "", "trace", "3f2a", "--trace-file", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "claude-3-haiku-20240307")
	assert.Contains(t, out, "schema_validation")
	assert.Contains(t, out, "violations=2")
	assert.Contains(t, out, "responseBytes=64")

	_, err = execute(t, "", "trace", "missing", "--trace-file", tracePath)
	assert.Error(t, err)

	_, err = execute(t, "", "trace", "3f2a")
	assert.Error(t, err)
}
