package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("openai", &config.OpenAIConfig{
		APIKey:       "test-key",
		Model:        "gpt-test",
		BaseURL:      server.URL + "/",
		RateLimitRPM: -1,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("openai", &config.OpenAIConfig{})
	require.Error(t, err)
}

func TestComplete_SendsSystemAndMessages(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```text\\nTry the Marina.\\n```" + `"}}]}`))
	})

	text, err := client.Complete(context.Background(), providers.LLMRequest{
		System:      "be brief",
		Messages:    []providers.LLMMessage{{Role: "user", Content: "hotels in lagos"}},
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Try the Marina.", text)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hotels in lagos", got.Messages[1].Content)
}

func TestComplete_EmptyChoiceIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
	})

	_, err := client.Complete(context.Background(), providers.LLMRequest{
		Messages: []providers.LLMMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
}

func TestComplete_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), providers.LLMRequest{
		Messages: []providers.LLMMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestEmbed_ReordersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})

	vectors, err := client.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestEmbed_MissingVectorIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	})

	_, err := client.Embed(context.Background(), "m", []string{"a", "b"})
	require.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "hello", cleanText("```\nhello\n```"))
	assert.Equal(t, "hello world", cleanText("  hello world "))
}
