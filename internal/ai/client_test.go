package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedParsesResponse(t *testing.T) {
	var gotPath string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-embed", body["model"])
		assert.Equal(t, "你好", body["input"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	client := NewClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "test-embed"}

	vec, err := client.Embed(context.Background(), cfg, "  你好  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/embeddings", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	client := NewClient()
	_, err := client.Embed(context.Background(), EmbeddingConfig{BaseURL: "http://unused"}, "   ")
	require.Error(t, err)
}

func TestEmbedBatchParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"甲", "乙"}, body.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1}},
				{"embedding": []float32{2}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient()
	vecs, err := client.EmbedBatch(context.Background(), EmbeddingConfig{BaseURL: srv.URL}, []string{"甲", "", "乙"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1}, vecs[0])
}

func TestScoreParsesRerankResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var body struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "问题", body.Query)
		require.Len(t, body.Documents, 1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 0, "relevance_score": 0.87}},
		})
	}))
	defer srv.Close()

	client := NewClient()
	score, err := client.Score(context.Background(), RerankConfig{BaseURL: srv.URL}, "问题", "段落")
	require.NoError(t, err)
	assert.Equal(t, 0.87, score)
}

func TestCompleteParsesChatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Stream   bool          `json:"stream"`
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "生成的回答"}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient()
	answer, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{
		{Role: "system", Content: "指令"},
		{Role: "user", Content: "问题"},
	})
	require.NoError(t, err)
	assert.Equal(t, "生成的回答", answer)
}

func TestCompleteSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{
		{Role: "user", Content: "问题"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewClient()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{
		{Role: "user", Content: "问题"},
	})
	require.Error(t, err)
}
