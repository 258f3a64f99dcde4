package utils

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

func TestHTTPClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewHTTPClient(5 * time.Second)
	resp, err := client.Do(context.Background(), &HTTPRequest{
		URL:         server.URL,
		QueryParams: map[string]string{"foo": "bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, ok := resp.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", body["status"])
}

func TestHTTPClientPostJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var received map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, "hello", received["message"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewHTTPClient(5 * time.Second)
	resp, err := client.Do(context.Background(), &HTTPRequest{
		URL:    server.URL,
		Method: http.MethodPost,
		Body:   map[string]string{"message": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHTTPClientNon2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(5 * time.Second)
	resp, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPClientBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
	}))
	defer server.Close()

	client := NewHTTPClient(5 * time.Second)
	_, err := client.Do(context.Background(), &HTTPRequest{
		URL:  server.URL,
		Auth: map[string]interface{}{"token": "secret"},
	})
	require.NoError(t, err)
}

func TestHTTPClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := NewHTTPClient(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, &HTTPRequest{URL: server.URL})
	require.Error(t, err)
}

func TestLLMClientChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "gen-1",
			"model": "openai/gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "Hello there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	defer server.Close()

	client := NewLLMClient(OpenRouter, "key-123", LLMClientOptions{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestLLMClientChatCompletionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	client := NewLLMClient(OpenAI, "bad-key", LLMClientOptions{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid api key", resp.Error.Message)
}

func TestLLMClientAnthropicMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key-456", r.Header.Get("x-api-key"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are terse.", req["system"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "msg-1",
			"model": "claude-3-5-haiku",
			"content": []map[string]interface{}{
				{"type": "text", "text": "Short answer"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 4, "output_tokens": 2},
		})
	}))
	defer server.Close()

	client := NewLLMClient(Anthropic, "key-456", LLMClientOptions{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), LLMRequest{
		Model: "claude-3-5-haiku",
		Messages: []Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "Hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Short answer", resp.Text())
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}
