package llm

import (
	"context"
	"time"
)

// Provider is the interface all LLM transports must implement
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a completion request and returns the full response
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and streams the response.
	// The channel is closed after a Done or Error event, or when ctx ends.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error)

	// Ping checks if the provider is reachable
	Ping(ctx context.Context) error
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest represents a request to the LLM
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// ContextSize is the context window budget requested from the backend.
	// Zero leaves the backend default.
	ContextSize int
	// Think enables the separate thinking channel on backends that have one.
	Think bool
}

// Message represents a chat message
type Message struct {
	Role    string
	Content string
}

// CompletionResponse represents the full response
type CompletionResponse struct {
	Content      string
	Thinking     string
	Model        string
	FinishReason string
	Usage        Usage
}

// Usage tracks token usage and backend timings
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	TotalDuration  time.Duration
	PromptDuration time.Duration
	EvalDuration   time.Duration
}

// StreamEvent is one transport chunk. Content and Thinking may both be
// empty on the final event, which carries Usage when the backend reports it.
type StreamEvent struct {
	Content  string
	Thinking string
	Done     bool
	Error    error
	Usage    *Usage
}

// NewRequest creates a simple completion request
func NewRequest(model string, systemPrompt, userPrompt string) *CompletionRequest {
	return &CompletionRequest{
		Model: model,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// send delivers ev unless ctx is done. It reports whether the event was sent.
func send(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
