package executors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, vector []float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
			"usage": map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbeddingService_ReturnsVector(t *testing.T) {
	srv := embeddingServer(t, []float32{0.1, 0.2, 0.3})
	svc := NewOpenAIEmbeddingService(EmbeddingConfig{Model: "text-embedding-3-small", APIKey: "sk-test", BaseURL: srv.URL})

	vec, err := svc.Embed(context.Background(), "hello world")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIEmbeddingService_EmptyResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []map[string]any{}})
	}))
	defer srv.Close()

	svc := NewOpenAIEmbeddingService(EmbeddingConfig{Model: "text-embedding-3-small", APIKey: "sk-test", BaseURL: srv.URL})

	_, err := svc.Embed(context.Background(), "hello world")

	assert.Error(t, err)
}
