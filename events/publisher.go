// Package events publishes modeling run events and LLM call records to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// RunStartedEvent is published when a run begins.
type RunStartedEvent struct {
	RunID  string    `json:"run_id"`
	Source string    `json:"source,omitempty"`
	Time   time.Time `json:"time"`
}

// StageEvent is published for every stage record.
type StageEvent struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source,omitempty"`
	Stage      string    `json:"stage"`
	Outcome    string    `json:"outcome"`
	Iteration  int       `json:"iteration,omitempty"`
	Item       string    `json:"item,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Time       time.Time `json:"time"`
}

// RunCompletedEvent is published when a run ends, accepted, abandoned or
// aborted.
type RunCompletedEvent struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source,omitempty"`
	Status        string    `json:"status"`
	Caveat        string    `json:"caveat,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
	ModelName     string    `json:"model_name,omitempty"`
	Iterations    int       `json:"iterations"`
	ValidateCalls int       `json:"validate_calls"`
	ImproveCalls  int       `json:"improve_calls"`
	Time          time.Time `json:"time"`
}

// Publisher is a workflow.Observer and llm.CallRecorder that publishes JSON
// messages to NATS core subjects.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

var (
	_ workflow.Observer = (*Publisher)(nil)
	_ llm.CallRecorder  = (*Publisher)(nil)
)

// NewPublisher creates a publisher on an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "semmodel"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Connect dials NATS at url and returns a publisher plus a close function
// that flushes pending messages.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, func(), error) {
	nc, err := nats.Connect(url,
		nats.Name("semmodel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return NewPublisher(nc, prefix, logger), closeFn, nil
}

// Observe implements workflow.Observer. Publish failures are logged.
func (p *Publisher) Observe(_ context.Context, e workflow.Event) {
	var (
		subject string
		payload any
	)
	switch e.Kind {
	case workflow.EventRunStarted:
		subject = RunStartedSubject(p.prefix)
		payload = RunStartedEvent{RunID: e.RunID, Source: e.Input, Time: e.Time}
	case workflow.EventStage:
		if e.Record == nil {
			return
		}
		rec := e.Record
		subject = StageSubject(p.prefix, rec.Stage)
		payload = StageEvent{
			RunID:      e.RunID,
			Source:     e.Input,
			Stage:      string(rec.Stage),
			Outcome:    string(rec.Outcome),
			Iteration:  rec.Iteration,
			Item:       rec.Item,
			Reason:     rec.Reason,
			DurationMs: rec.Duration.Milliseconds(),
			Time:       rec.At,
		}
	case workflow.EventRunFinished:
		subject = RunCompletedSubject(p.prefix)
		payload = completedEvent(e)
	default:
		return
	}

	if err := p.publish(subject, payload); err != nil {
		p.logger.Warn("Failed to publish run event",
			"run_id", e.RunID,
			"subject", subject,
			"error", err)
	}
}

func completedEvent(e workflow.Event) RunCompletedEvent {
	ev := RunCompletedEvent{RunID: e.RunID, Source: e.Input, Time: e.Time}
	if e.Result == nil {
		ev.Status = "aborted"
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		return ev
	}
	res := e.Result
	ev.Status = string(res.Termination)
	ev.Caveat = string(res.Caveat)
	ev.Reason = res.Reason
	ev.Iterations = res.Iterations
	ev.ValidateCalls = res.ValidateCalls
	ev.ImproveCalls = res.ImproveCalls
	if res.Model != nil {
		ev.ModelName = res.Model.Name
	}
	return ev
}

// Record implements llm.CallRecorder. Prompts and responses are not
// published.
func (p *Publisher) Record(_ context.Context, rec *llm.CallRecord) error {
	summary := *rec
	summary.Messages = nil
	summary.Response = ""
	return p.publish(LLMCallSubject(p.prefix), summary)
}

func (p *Publisher) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
