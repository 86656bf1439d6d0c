package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/model"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Completer is the part of Client the Invoker needs.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Invoker answers agent calls through an LLM client. The role's instructions
// become the system message and the call input the user message.
type Invoker struct {
	client      Completer
	temperature *float64
	maxTokens   int
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTemperature sets the sampling temperature for every call.
func WithTemperature(t float64) InvokerOption {
	return func(i *Invoker) {
		i.temperature = &t
	}
}

// WithDefaultMaxTokens caps responses for calls that set no limit.
func WithDefaultMaxTokens(n int) InvokerOption {
	return func(i *Invoker) {
		i.maxTokens = n
	}
}

// NewInvoker creates an agent.Invoker backed by client.
func NewInvoker(client Completer, opts ...InvokerOption) *Invoker {
	i := &Invoker{client: client}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

var _ agent.Invoker = (*Invoker)(nil)

// Invoke implements agent.Invoker. Call.Model, when set, names a registry
// endpoint; otherwise the role's capability chain is used.
func (i *Invoker) Invoke(ctx context.Context, call agent.Call) (string, error) {
	messages := make([]Message, 0, 2)
	if call.Instructions != "" {
		messages = append(messages, Message{Role: "system", Content: call.Instructions})
	}
	messages = append(messages, Message{Role: "user", Content: call.Input})

	maxTokens := call.MaxTokens
	if maxTokens <= 0 {
		maxTokens = i.maxTokens
	}

	resp, err := i.client.Complete(ctx, Request{
		Capability:  model.CapabilityForRole(call.Role).String(),
		Endpoint:    call.Model,
		Role:        string(call.Role),
		RunID:       agent.RunIDFrom(ctx),
		Messages:    messages,
		Temperature: i.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
