package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/generation"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_CHAT_KEY", "sk-chat")
	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKeyEnv: "TEST_CHAT_KEY", Model: "gpt-test", MaxTokens: 200})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("NO_CHAT_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "NO_CHAT_KEY"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-chat", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 200, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Contains(t, req.Messages[1].Content, "Question: dose?")
		w.Write([]byte(`{"choices":[{"message":{"content":"  500 mg [p. 2]  "}}]}`))
	})

	prompt := generation.BuildPrompt("dose?", []generation.Passage{{Page: 2, Text: "500 mg"}})
	out, err := c.Generate(context.Background(), prompt, nil)
	require.NoError(t, err)
	assert.Equal(t, "500 mg [p. 2]", out)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		msg  string
	}{
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}, "bad key"},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}, "no choices"},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			_, err := c.Generate(context.Background(), generation.Prompt{User: "q"}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrRemote)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
