package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the OpenAI wire protocol for the provider.
func fakeServer(t *testing.T, failing bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if failing {
			http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 0.5, 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test-embed"})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if failing {
			http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "You discussed the Q3 roadmap.\n"},
				"finish_reason": "stop",
			}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestProvider(t *testing.T, host string) ai.AIProvider {
	t.Helper()
	provider, err := NewProvider(ai.NewConfig(
		ai.WithHost(host),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithChatModel("test-chat"),
	))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestProvider_Embedder(t *testing.T) {
	server, _ := fakeServer(t, false)
	provider := newTestProvider(t, server.URL)

	vector, err := provider.Embedder().EmbedText(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1}, vector)

	vectors, err := provider.Embedder().EmbedTexts(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[1][0])
}

func TestProvider_Generator(t *testing.T) {
	server, _ := fakeServer(t, false)
	provider := newTestProvider(t, server.URL)

	answer, err := provider.Generator().Generate(t.Context(), "What did I discuss?")
	require.NoError(t, err)
	assert.Equal(t, "You discussed the Q3 roadmap.\n", answer, "completion is returned verbatim")
}

func TestProvider_FailuresAreProviderErrors(t *testing.T) {
	server, requests := fakeServer(t, true)
	provider := newTestProvider(t, server.URL)

	_, err := provider.Embedder().EmbedText(t.Context(), "hello")
	assert.ErrorIs(t, err, core.ErrProvider)

	_, err = provider.Generator().Generate(t.Context(), "prompt")
	assert.ErrorIs(t, err, core.ErrProvider)

	// No retries: one request per call.
	assert.Equal(t, int32(2), requests.Load())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)
}
