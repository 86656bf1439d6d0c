package llm

import (
	"context"
	"errors"
	"time"
)

// CallRecord describes one Complete call, successful or not.
type CallRecord struct {
	RequestID  string `json:"request_id"`
	RunID      string `json:"run_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Capability string `json:"capability"`

	// Endpoint is the registry name of the endpoint that answered; Model and
	// Provider describe it.
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	Messages []Message `json:"messages"`
	Response string    `json:"response,omitempty"`

	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ContextBudget    int    `json:"context_budget,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	Error         string   `json:"error,omitempty"`
	Retries       int      `json:"retries"`
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// Succeeded reports whether the call produced a response.
func (r *CallRecord) Succeeded() bool {
	return r.Error == ""
}

// CallRecorder receives a record for every Complete call. Record errors are
// logged and never fail the call.
type CallRecorder interface {
	Record(ctx context.Context, rec *CallRecord) error
}

// CallRecorderFunc adapts a function to CallRecorder.
type CallRecorderFunc func(ctx context.Context, rec *CallRecord) error

// Record calls f.
func (f CallRecorderFunc) Record(ctx context.Context, rec *CallRecord) error {
	return f(ctx, rec)
}

type multiRecorder []CallRecorder

func (m multiRecorder) Record(ctx context.Context, rec *CallRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiRecorder fans a record out to every non-nil recorder and joins their
// errors.
func MultiRecorder(recorders ...CallRecorder) CallRecorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
