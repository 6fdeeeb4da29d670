package llm

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

func TestOllamaComplete(t *testing.T) {
	t.Run("returns trimmed response text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "test-model", payload["model"])
			assert.Equal(t, false, payload["stream"])

			_ = json.NewEncoder(w).Encode(map[string]any{"response": "  8  "})
		}))
		defer server.Close()

		client := NewOllamaClient(server.URL, "test-model", time.Second)
		got, err := client.Complete(context.Background(), "rate this", Options{})
		require.NoError(t, err)
		assert.Equal(t, "8", got)
	})

	t.Run("non-200 is a bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		client := NewOllamaClient(server.URL, "m", time.Second)
		_, err := client.Complete(context.Background(), "p", Options{})
		assert.ErrorIs(t, err, ErrBadResponse)
		assert.True(t, IsUnavailable(err))
	})

	t.Run("garbage body is a bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer server.Close()

		client := NewOllamaClient(server.URL, "m", time.Second)
		_, err := client.Complete(context.Background(), "p", Options{})
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("slow server times out", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}))
		defer server.Close()

		client := NewOllamaClient(server.URL, "m", 50*time.Millisecond)
		_, err := client.Complete(context.Background(), "p", Options{})
		assert.ErrorIs(t, err, ErrTimeout)
		assert.True(t, IsUnavailable(err))
	})

	t.Run("unreachable server is connection refused", func(t *testing.T) {
		client := NewOllamaClient("http://127.0.0.1:1", "m", time.Second)
		_, err := client.Complete(context.Background(), "p", Options{})
		assert.ErrorIs(t, err, ErrConnectionRefused)
		assert.True(t, IsUnavailable(err))
	})

	t.Run("per-request model override", func(t *testing.T) {
		var seenModel string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			seenModel, _ = payload["model"].(string)
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
		}))
		defer server.Close()

		client := NewOllamaClient(server.URL, "default-model", time.Second)
		_, err := client.Complete(context.Background(), "p", Options{Model: "override"})
		require.NoError(t, err)
		assert.Equal(t, "override", seenModel)
	})
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var payload struct {
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 2)
		assert.Equal(t, "system", payload.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "variant one\nvariant two"},
		})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "m", time.Second)
	got, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "expand"},
		{Role: "user", Content: "query"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "variant one\nvariant two", got)
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(ErrTimeout))
	assert.True(t, IsUnavailable(ErrConnectionRefused))
	assert.True(t, IsUnavailable(ErrBadResponse))
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(assert.AnError))
}

func TestModel(t *testing.T) {
	client := NewOllamaClient("http://localhost:11434", "qwen2.5:1.5b", 0)
	assert.Equal(t, "qwen2.5:1.5b", client.Model())
}
