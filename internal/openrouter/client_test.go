package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/heirloom/internal/jobtype"
	"github.com/runixer/heirloom/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
		Model:   "test_model",
		Choices: []Choice{{Message: ResponseMessage{Role: "assistant", Content: content}}},
		Usage:   Usage{PromptTokens: 100, CompletionTokens: 23, TotalTokens: 123},
	})
}

func TestCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))
		writeCompletion(w, "Hello from mock server!")
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{APIKey: "test_api_key", BaseURL: server.URL + "/api/v1"})
	require.NoError(t, err)

	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model:    "test_model",
		Messages: []Message{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from mock server!", resp.Choices[0].Message.Content)
	assert.Equal(t, 100, resp.Usage.PromptTokens)
	assert.Equal(t, 23, resp.Usage.CompletionTokens)
	assert.Equal(t, 123, resp.Usage.TotalTokens)
}

func TestCreateChatCompletionLogging(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "log test")
	}))
	defer server.Close()

	client, err := NewClient(logger, ClientOptions{APIKey: "test_api_key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(jobtype.WithJobType(context.Background(), jobtype.Options), ChatCompletionRequest{
		Model:    "test_model",
		Messages: []Message{{Role: "user", Content: "This is a secret message that should not be logged."}},
	})
	require.NoError(t, err)

	logs := logBuf.String()
	assert.NotContains(t, logs, "This is a secret message")
	assert.Contains(t, logs, `"job":"options"`)
	assert.Contains(t, logs, "OpenRouter response parsed")
}

func TestCreateChatCompletion_NonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateChatCompletion_NoTransportRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateChatCompletion_RetryCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL, MaxRetries: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.CreateChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 700*time.Millisecond)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClient(discardLogger(), ClientOptions{ProxyURL: "://bad"})
	assert.Error(t, err)
}

func TestProvider_Complete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, `{"strategy":"s","options":["a","b","c"]}`)
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)
	provider := NewProvider(client, "google/gemini-2.5-flash")

	text, err := provider.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "hi"},
		},
		Schema: &llm.Schema{
			Name:       "reply_options",
			Strict:     true,
			Definition: map[string]any{"type": "object"},
		},
		Temperature: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"strategy":"s","options":["a","b","c"]}`, text)

	assert.Equal(t, "google/gemini-2.5-flash", got["model"])
	assert.InDelta(t, 0.9, got["temperature"], 1e-9)
	assert.Len(t, got["messages"], 2)

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "reply_options", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

func TestProvider_PlainTextOmitsResponseFormat(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "Bonjour!")
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	text, err := NewProvider(client, "m").Complete(context.Background(), llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour!", text)
	assert.NotContains(t, got, "response_format")
}

func TestProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(discardLogger(), ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = NewProvider(client, "m").Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestFilterReasoningForLog(t *testing.T) {
	details := []interface{}{
		map[string]interface{}{"type": "reasoning.text", "text": "thinking"},
		map[string]interface{}{"type": "reasoning.encrypted", "data": "blob"},
	}
	filtered := FilterReasoningForLog(details).([]interface{})
	assert.Len(t, filtered, 1)

	assert.Nil(t, FilterReasoningForLog([]interface{}{map[string]interface{}{"type": "reasoning.encrypted"}}))
	assert.Nil(t, FilterReasoningForLog(nil))
}

func TestCalculateBackoff(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := calculateBackoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Duration(float64(maxDelay)*(1+jitterFactor)))
	}
}
