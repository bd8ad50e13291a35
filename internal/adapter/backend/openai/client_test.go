package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"npcgateway/internal/app/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content, reasoning string) string {
	msg := map[string]any{"role": "assistant", "content": content}
	if reasoning != "" {
		msg["reasoning_content"] = reasoning
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "qwen",
		"choices": []any{map[string]any{"index": 0, "message": msg, "finish_reason": "stop"}},
	})
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "qwen"})
	require.NoError(t, err)
	return c
}

func TestGenerate_ChatMessagesAndSampling(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion(`{"actions":[{"type":"interact"}]}`, "")))
	})
	temp := 0.5
	reply, err := c.Generate(context.Background(), ports.BackendRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Sampling:     ports.Sampling{Temperature: &temp, MaxTokens: 64},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"actions":[{"type":"interact"}]}`, reply.Text)
	assert.Equal(t, "qwen", got["model"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.Equal(t, 64.0, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["content"])
}

func TestGenerate_ReasoningFoldedIntoText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion(`{"actions":[]}`, "thirsty")))
	})
	reply, err := c.Generate(context.Background(), ports.BackendRequest{UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, `<think>thirsty</think>{"actions":[]}`, reply.Text)
}

func TestGenerate_ServerErrorIsBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	})
	_, err := c.Generate(context.Background(), ports.BackendRequest{UserPrompt: "u"})
	require.ErrorIs(t, err, ports.ErrBackend)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestGenerate_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})
	_, err := c.Generate(context.Background(), ports.BackendRequest{UserPrompt: "u"})
	assert.ErrorIs(t, err, ports.ErrBackend)
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}
