package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		wrapped := MCPRequestLogger(zap.New(core))(jsonHandler(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"[]"}]}}`))

		reqBody := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"inspect_join_keys","arguments":{"datasets":[{"name":"A","rows":[{"id":1},{"id":2}]}]}}}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		require.Equal(t, 2, logs.Len(), "Should log request and response")

		requestLog := logs.All()[0]
		assert.Equal(t, "MCP request", requestLog.Message)
		assert.Equal(t, "tools/call", requestLog.ContextMap()["method"])
		assert.Equal(t, "inspect_join_keys", requestLog.ContextMap()["tool"])

		args := requestLog.ContextMap()["arguments"].(map[string]any)
		datasets := args["datasets"].([]any)
		first := datasets[0].(map[string]any)
		assert.Equal(t, "A", first["name"])
		assert.Equal(t, "[2 rows]", first["rows"])

		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response success", responseLog.Message)
		assert.Equal(t, "inspect_join_keys", responseLog.ContextMap()["tool"])
		assert.NotNil(t, responseLog.ContextMap()["duration"])
	})

	t.Run("logs JSON-RPC error response", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		wrapped := MCPRequestLogger(zap.New(core))(jsonHandler(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"tool not found"}}`))

		reqBody := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{}}}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
		wrapped.ServeHTTP(httptest.NewRecorder(), req)

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, int64(-32602), responseLog.ContextMap()["error_code"])
		assert.Equal(t, "tool not found", responseLog.ContextMap()["error_message"])
	})

	t.Run("logs tool error result", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		wrapped := MCPRequestLogger(zap.New(core))(jsonHandler(`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"Need at least 2 datasets to join"}]}}`))

		reqBody := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"join_datasets","arguments":{"datasets":[]}}}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
		wrapped.ServeHTTP(httptest.NewRecorder(), req)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "MCP tool error", logs.All()[1].Message)
	})

	t.Run("passes through with nil logger", func(t *testing.T) {
		called := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		MCPRequestLogger(nil)(handler).ServeHTTP(rec, req)

		assert.True(t, called, "Should pass through to handler")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("handles malformed JSON request gracefully", func(t *testing.T) {
		core, _ := observer.New(zapcore.DebugLevel)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad request"}`))
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{invalid json`))
		rec := httptest.NewRecorder()
		MCPRequestLogger(zap.New(core))(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("handler still sees the full body", func(t *testing.T) {
		core, _ := observer.New(zapcore.DebugLevel)
		reqBody := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
		var seen string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := new(bytes.Buffer)
			_, _ = b.ReadFrom(r.Body)
			seen = b.String()
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
		MCPRequestLogger(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, reqBody, seen)
	})
}

func TestSanitizeArguments(t *testing.T) {
	t.Run("redacts sensitive keywords", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{
			"password":      "secret",
			"access_token":  "xyz789",
			"client_secret": "hidden",
			"DSN":           "postgres://u:p@h/db",
			"keys":          []any{map[string]any{"file1": "A", "col1": "id"}},
		})

		assert.Equal(t, "[REDACTED]", result["password"])
		assert.Equal(t, "[REDACTED]", result["access_token"])
		assert.Equal(t, "[REDACTED]", result["client_secret"])
		assert.Equal(t, "[REDACTED]", result["DSN"])
		assert.Equal(t, []any{map[string]any{"file1": "A", "col1": "id"}}, result["keys"], "join keys are not secrets")
	})

	t.Run("truncates long strings at any depth", func(t *testing.T) {
		long := strings.Repeat("x", 250)
		result := sanitizeArguments(map[string]any{
			"name":   long,
			"nested": map[string]any{"table": long},
			"short":  "abc",
		})

		truncated := result["name"].(string)
		assert.Len(t, truncated, maxLoggedString+3)
		assert.True(t, strings.HasSuffix(truncated, "..."))
		assert.Len(t, result["nested"].(map[string]any)["table"], maxLoggedString+3)
		assert.Equal(t, "abc", result["short"])
	})

	t.Run("summarizes rows", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"rows": []any{1, 2, 3}})
		assert.Equal(t, "[3 rows]", result["rows"])
	})

	t.Run("handles nil and empty arguments", func(t *testing.T) {
		assert.Nil(t, sanitizeArguments(nil))
		assert.Empty(t, sanitizeArguments(map[string]any{}))
	})

	t.Run("preserves non-string values", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{
			"limit": 42.0,
			"flag":  true,
			"null":  nil,
		})

		assert.Equal(t, 42.0, result["limit"])
		assert.Equal(t, true, result["flag"])
		assert.Nil(t, result["null"])
	})
}
