package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompleter_SendsSamplingAndBudget(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Once upon a time.  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter("sk-test", srv.URL)
	out, err := c.Complete(context.Background(), Request{
		Model:     "gpt-test",
		Prompt:    "Write an introduction.",
		MaxTokens: 4000,
		Sampling:  DefaultSampling(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Once upon a time.", out)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 4000, got.MaxTokens)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 1.0, got.TopP)
	assert.Equal(t, 1, got.N)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Write an introduction.", got.Messages[0].Content)
}

func TestOpenAICompleter_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"slow down"}`, "429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad json", http.StatusOK, `not json`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ctx := WithPhase(context.Background(), "chapter", "Chapter 1")
			_, err := NewOpenAICompleter("sk-test", srv.URL+"/v1").Complete(ctx, Request{Model: "m", Prompt: "p"})
			require.Error(t, err)

			var gErr *GenerationServiceError
			require.True(t, errors.As(err, &gErr))
			assert.Equal(t, "openai", gErr.Provider)
			assert.Equal(t, "chapter:Chapter 1", gErr.Phase)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenAICompleter_RequiresKey(t *testing.T) {
	_, err := NewOpenAICompleter("", "").Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	var gErr *GenerationServiceError
	assert.True(t, errors.As(err, &gErr))
}

func TestNewOpenAICompleter_Endpoint(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", NewOpenAICompleter("k", "").endpoint)
	assert.Equal(t, "http://local/v1/chat/completions", NewOpenAICompleter("k", "http://local/").endpoint)
	assert.Equal(t, "http://local/v1/chat/completions", NewOpenAICompleter("k", "http://local/v1").endpoint)
	assert.Equal(t, "http://local/x/chat/completions", NewOpenAICompleter("k", "http://local/x/chat/completions").endpoint)
}
