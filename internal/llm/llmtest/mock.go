// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/sant0-9/promptforge/internal/llm"
)

// MockProvider is a thread-safe scripted provider.
//
// Complete returns Responses in sequence (the last one repeats) or Err.
// Stream replays StreamEvents, or StreamErr if set. Every request is recorded.
type MockProvider struct {
	mu sync.Mutex

	Responses []*llm.CompletionResponse
	Err       error
	// ErrAt fails the Nth Complete call (1-based) with Err; zero fails every call.
	ErrAt int

	StreamEvents []llm.StreamEvent
	StreamErr    error
	// Hold keeps the stream open after the scripted events until the
	// request context is cancelled, like a stalled backend.
	Hold bool

	PingErr error

	requests  []*llm.CompletionRequest
	callCount int
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Ping(context.Context) error {
	return m.PingErr
}

func (m *MockProvider) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.callCount++

	if m.Err != nil && (m.ErrAt == 0 || m.ErrAt == m.callCount) {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}

	idx := m.callCount - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

func (m *MockProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	events := append([]llm.StreamEvent(nil), m.StreamEvents...)
	streamErr := m.StreamErr
	hold := m.Hold
	m.mu.Unlock()

	if streamErr != nil {
		return nil, streamErr
	}

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Requests returns every request seen so far.
func (m *MockProvider) Requests() []*llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.CompletionRequest(nil), m.requests...)
}

// CallCount returns the number of Complete calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
