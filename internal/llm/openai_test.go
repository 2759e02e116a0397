package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIStream_SSE(t *testing.T) {
	var auth string
	var body openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"reasoning_content":"thinking"}}]}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"Hi"}}]}`)
		fmt.Fprintln(w, `data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`)
		fmt.Fprintln(w, `data: [DONE]`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("groq", srv.URL, "key", "m")
	ch, err := p.Stream(context.Background(), &CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)

	events := collect(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, "thinking", events[0].Thinking)
	assert.Equal(t, "Hi", events[1].Content)
	assert.True(t, events[2].Done)
	require.NotNil(t, events[2].Usage)
	assert.Equal(t, 9, events[2].Usage.TotalTokens)

	assert.Equal(t, "Bearer key", auth)
	assert.True(t, body.Stream)
	require.NotNil(t, body.StreamOptions)
	assert.True(t, body.StreamOptions.IncludeUsage)
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"done"},"finish_reason":"stop"}],"usage":{"total_tokens":4}}`)
	}))
	defer srv.Close()

	resp, err := NewOpenAIProvider("", srv.URL+"/", "", "m").Complete(context.Background(), NewRequest("", "s", "u"))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestOpenAIComplete_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("openai", srv.URL, "k", "m").Complete(context.Background(), NewRequest("", "s", "u"))
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantErr  string
	}{
		{name: "ollama", cfg: config.Config{Provider: "ollama", Model: "qwen3:8b"}, wantName: "ollama"},
		{name: "groq needs key", cfg: config.Config{Provider: "groq"}, wantErr: "requires an API key"},
		{name: "groq", cfg: config.Config{Provider: "groq", APIKey: "k"}, wantName: "groq"},
		{name: "custom needs url", cfg: config.Config{Provider: "custom"}, wantErr: "base_url"},
		{name: "custom", cfg: config.Config{Provider: "custom", BaseURL: "http://x/v1"}, wantName: "custom"},
		{name: "unknown", cfg: config.Config{Provider: "nope"}, wantErr: "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(&tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestApplyEffort(t *testing.T) {
	base := func() *CompletionRequest {
		return &CompletionRequest{Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hello"},
		}}
	}

	low := base()
	original := low.Messages
	ApplyEffort(low, config.EffortLow)
	assert.False(t, low.Think)
	assert.Equal(t, "hello /nothink", low.Messages[1].Content)
	assert.Equal(t, "hello", original[1].Content, "caller's slice must not change")

	medium := base()
	ApplyEffort(medium, config.EffortMedium)
	assert.True(t, medium.Think)
	assert.Equal(t, "sys", medium.Messages[0].Content)

	high := base()
	ApplyEffort(high, config.EffortHigh)
	assert.True(t, high.Think)
	assert.Contains(t, high.Messages[0].Content, "[DEEP REASONING MODE]")
	assert.Equal(t, "hello", high.Messages[1].Content)
}
