package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

func TestSendReturnsFirstChoice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"kopfdaten\":{}}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	out, err := c.Send(context.Background(), llm.Request{Prompt: "hallo", MaxTokens: 4096})
	require.NoError(t, err)
	assert.Equal(t, `{"kopfdaten":{}}`, out)

	assert.Equal(t, defaultModel, got["model"])
	assert.EqualValues(t, 4096, got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestSendClassifiesAPIErrors(t *testing.T) {
	cases := []struct {
		status int
		class  llm.ErrorClass
		reason string
	}{
		{http.StatusUnauthorized, llm.ClassTerminal, llm.ReasonAuth},
		{http.StatusBadRequest, llm.ClassTerminal, llm.ReasonBadRequest},
		{http.StatusTooManyRequests, llm.ClassTransient, llm.ReasonRateLimit},
		{http.StatusBadGateway, llm.ClassTransient, llm.ReasonServer},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		}))
		c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
		_, err := c.Send(context.Background(), llm.Request{Prompt: "x", MaxTokens: 10})
		srv.Close()

		var ce *llm.CompletionError
		require.True(t, errors.As(err, &ce), "status %d", tc.status)
		assert.Equal(t, tc.status, ce.Status)
		assert.Equal(t, tc.class, ce.Class, "status %d", tc.status)
		assert.Equal(t, tc.reason, ce.Reason, "status %d", tc.status)
	}
}

func TestSendWithoutKeyIsConfigError(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.Send(context.Background(), llm.Request{Prompt: "x"})

	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, llm.ReasonConfig, ce.Reason)
	assert.Contains(t, ce.Error(), "OPENAI_API_KEY")
}
