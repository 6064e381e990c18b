package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/ports"
)

const chatCompletion = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1709290000,
  "model": "sonar",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Sentiment: Negative\nThemes: Trade, Tariffs"}
  }]
}`

const anthropicMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-haiku-4-5",
  "content": [{"type": "text", "text": "Sentiment: Positive"}, {"type": "text", "text": "Themes: Harvest"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 8}
}`

type captured struct {
	path   string
	auth   string
	apiKey string
	body   map[string]any
}

func stubServer(t *testing.T, status int, reply string, calls *atomic.Int32, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			got.path = r.URL.Path
			got.auth = r.Header.Get("Authorization")
			got.apiKey = r.Header.Get("X-Api-Key")
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(provider, endpoint string) config.ClassifierConfig {
	return config.ClassifierConfig{
		Provider:     provider,
		Endpoint:     endpoint,
		Model:        "sonar",
		APIKey:       "secret",
		SystemPrompt: "classify",
		MaxTokens:    64,
	}
}

func TestOpenAIClassifierReturnsFirstChoice(t *testing.T) {
	var calls atomic.Int32
	var got captured
	srv := stubServer(t, http.StatusOK, chatCompletion, &calls, &got)

	reply, err := NewOpenAIClassifier(testConfig(config.ProviderOpenAI, srv.URL)).Classify(context.Background(), "Trade talks stall")
	require.NoError(t, err)
	assert.Equal(t, "Sentiment: Negative\nThemes: Trade, Tariffs", reply)

	assert.Equal(t, "/chat/completions", got.path)
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Equal(t, "sonar", got.body["model"])
	messages, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "Trade talks stall", messages[1].(map[string]any)["content"])
}

func TestOpenAIClassifierStatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		rejected bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"bad request", http.StatusBadRequest, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := stubServer(t, tc.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`, &calls, nil)

			_, err := NewOpenAIClassifier(testConfig(config.ProviderOpenAI, srv.URL)).Classify(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tc.rejected, errors.Is(err, ports.ErrRejected))
			assert.Equal(t, int32(1), calls.Load(), "sdk retries must be disabled")
		})
	}
}

func TestOpenAIClassifierEmptyChoices(t *testing.T) {
	var calls atomic.Int32
	srv := stubServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"sonar","choices":[]}`, &calls, nil)

	_, err := NewOpenAIClassifier(testConfig(config.ProviderOpenAI, srv.URL)).Classify(context.Background(), "x")
	require.ErrorIs(t, err, errEmptyReply)
}

func TestAnthropicClassifierJoinsTextBlocks(t *testing.T) {
	var calls atomic.Int32
	var got captured
	srv := stubServer(t, http.StatusOK, anthropicMessage, &calls, &got)

	reply, err := NewAnthropicClassifier(testConfig(config.ProviderAnthropic, srv.URL)).Classify(context.Background(), "Harvest beats forecasts")
	require.NoError(t, err)
	assert.Equal(t, "Sentiment: Positive\nThemes: Harvest", reply)

	assert.Equal(t, "/v1/messages", got.path)
	assert.Equal(t, "secret", got.apiKey)
	assert.EqualValues(t, 64, got.body["max_tokens"])
}

func TestAnthropicClassifierRejected(t *testing.T) {
	var calls atomic.Int32
	srv := stubServer(t, http.StatusForbidden, `{"type":"error","error":{"type":"permission_error","message":"denied"}}`, &calls, nil)

	_, err := NewAnthropicClassifier(testConfig(config.ProviderAnthropic, srv.URL)).Classify(context.Background(), "x")
	require.ErrorIs(t, err, ports.ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(testConfig(config.ProviderOpenAI, ""))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClassifier{}, c)

	c, err = New(testConfig(config.ProviderAnthropic, config.DefaultClassifierEndpoint))
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClassifier{}, c)

	_, err = New(testConfig("cohere", ""))
	require.ErrorContains(t, err, "cohere")

	missingKey := testConfig(config.ProviderOpenAI, "")
	missingKey.APIKey = ""
	_, err = New(missingKey)
	require.Error(t, err)
}

func TestRejectedStatus(t *testing.T) {
	assert.True(t, rejectedStatus(http.StatusNotFound))
	assert.False(t, rejectedStatus(http.StatusRequestTimeout))
	assert.False(t, rejectedStatus(http.StatusOK))
	assert.False(t, rejectedStatus(http.StatusServiceUnavailable))
}
