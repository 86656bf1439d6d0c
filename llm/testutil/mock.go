// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/semmodel/llm"
)

// MockLLMClient is a thread-safe llm.Completer that returns canned responses
// in order and records every request.
//
//	mock := &testutil.MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: "not json"},
//	        {Content: `{"actors": []}`},
//	    },
//	}
type MockLLMClient struct {
	mu        sync.Mutex
	Responses []*llm.Response // returned in sequence; the last one repeats
	Err       error           // takes precedence over Responses
	requests  []llm.Request
}

var _ llm.Completer = (*MockLLMClient)(nil)

// Complete implements llm.Completer.
func (m *MockLLMClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &llm.Response{Model: "test-model"}, nil
	}
	i := len(m.requests) - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}
