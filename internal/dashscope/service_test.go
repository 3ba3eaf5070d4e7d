package dashscope

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	assert.Nil(t, NewService("", "", 0))
	assert.Nil(t, NewService("   ", "", 0))

	svc := NewService("test-key", "https://example.com/", 0)
	require.NotNil(t, svc)
	assert.True(t, svc.Ready())
	assert.Equal(t, "https://example.com", svc.baseURL)
}

func TestServiceNotReady(t *testing.T) {
	var svc *Service
	assert.False(t, svc.Ready())
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-turbo", req.Model)

		json.NewEncoder(w).Encode(ChatResponse{
			ID:    "resp-1",
			Model: req.Model,
			Choices: []ChatChoice{
				{Message: ChatMessage{Role: "assistant", Content: "你好"}, FinishReason: "stop"},
			},
		})
	}))
	defer server.Close()

	svc := NewService("test-key", server.URL, time.Second)
	resp, err := svc.ChatCompletion(context.Background(), ChatRequest{
		Model:    "qwen-turbo",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "你好", resp.Choices[0].Message.Content)
}

func TestCreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/embeddings", r.URL.Path)

		var req EmbeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data := make([]EmbeddingData, len(req.Input))
		for i := range req.Input {
			data[i] = EmbeddingData{Index: i, Embedding: []float64{0.1, 0.2}}
		}
		json.NewEncoder(w).Encode(EmbeddingResponse{Data: data, Model: req.Model})
	}))
	defer server.Close()

	svc := NewService("test-key", server.URL, time.Second)
	resp, err := svc.CreateEmbeddings(context.Background(), EmbeddingRequest{
		Model: "text-embedding-v3",
		Input: []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
}

func TestPostAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(Error{Code: "Throttling", Message: "rate limited", RequestID: "req-1"})
	}))
	defer server.Close()

	svc := NewService("test-key", server.URL, time.Second)
	_, err := svc.ChatCompletion(context.Background(), ChatRequest{Model: "qwen-turbo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "Throttling")
}

func TestPostCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	svc := NewService("test-key", server.URL, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ChatCompletion(ctx, ChatRequest{Model: "qwen-turbo"})
	assert.ErrorIs(t, err, context.Canceled)
}
