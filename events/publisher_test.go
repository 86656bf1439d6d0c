package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func newTestPublisher(conn Conn) *Publisher {
	return NewPublisher(conn, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "p.stage.generate_usecases", StageSubject("p", workflow.StageGenerateUseCases))
	assert.Equal(t, "p.run.started", RunStartedSubject("p"))
	assert.Equal(t, "p.run.completed", RunCompletedSubject("p"))
	assert.Equal(t, "p.llm.call", LLMCallSubject("p"))
}

func TestNewPublisher_DefaultPrefix(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "", nil)
	p.Observe(context.Background(), workflow.Event{Kind: workflow.EventRunStarted, RunID: "r"})
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "semmodel.run.started", conn.msgs[0].subject)
}

func TestObserve_Stage(t *testing.T) {
	conn := &fakeConn{}
	p := newTestPublisher(conn)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	p.Observe(context.Background(), workflow.Event{
		Kind:  workflow.EventStage,
		RunID: "run-1",
		Input: "library.md",
		Record: &workflow.StageRecord{
			Stage:     workflow.StageGenerateSequences,
			Outcome:   workflow.OutcomeSkipped,
			Item:      "Return Book",
			Reason:    "no json",
			Duration:  1500 * time.Millisecond,
			At:        at,
			Iteration: 0,
		},
	})

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "test.stage.generate_sequences", conn.msgs[0].subject)

	var ev StageEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &ev))
	assert.Equal(t, StageEvent{
		RunID:      "run-1",
		Source:     "library.md",
		Stage:      "GENERATE_SEQUENCES",
		Outcome:    "skipped",
		Item:       "Return Book",
		Reason:     "no json",
		DurationMs: 1500,
		Time:       at,
	}, ev)
}

func TestObserve_StageWithoutRecordIgnored(t *testing.T) {
	conn := &fakeConn{}
	newTestPublisher(conn).Observe(context.Background(), workflow.Event{Kind: workflow.EventStage})
	assert.Empty(t, conn.msgs)
}

func TestObserve_RunCompleted(t *testing.T) {
	conn := &fakeConn{}
	p := newTestPublisher(conn)

	p.Observe(context.Background(), workflow.Event{
		Kind:  workflow.EventRunFinished,
		RunID: "run-1",
		Result: &workflow.Result{
			Termination:   workflow.AcceptedWithCaveat,
			Caveat:        workflow.CaveatImprovementFailed,
			Reason:        "no parts",
			Model:         &dsl.DomainModel{Name: "Library"},
			Iterations:    2,
			ValidateCalls: 2,
			ImproveCalls:  2,
		},
	})
	p.Observe(context.Background(), workflow.Event{
		Kind:  workflow.EventRunFinished,
		RunID: "run-2",
		Err:   errors.New("stage GENERATE_CLASSES: schema"),
	})

	require.Len(t, conn.msgs, 2)
	for _, m := range conn.msgs {
		assert.Equal(t, "test.run.completed", m.subject)
	}

	var ok RunCompletedEvent
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &ok))
	assert.Equal(t, "accepted_with_caveat", ok.Status)
	assert.Equal(t, "improvement_failed", ok.Caveat)
	assert.Equal(t, "Library", ok.ModelName)
	assert.Equal(t, 2, ok.ImproveCalls)

	var failed RunCompletedEvent
	require.NoError(t, json.Unmarshal(conn.msgs[1].data, &failed))
	assert.Equal(t, "aborted", failed.Status)
	assert.Equal(t, "stage GENERATE_CLASSES: schema", failed.Error)
}

func TestObserve_PublishErrorIsSwallowed(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newTestPublisher(conn)
	assert.NotPanics(t, func() {
		p.Observe(context.Background(), workflow.Event{Kind: workflow.EventRunStarted, RunID: "r"})
	})
}

func TestRecord_StripsPrompts(t *testing.T) {
	conn := &fakeConn{}
	p := newTestPublisher(conn)

	rec := &llm.CallRecord{
		RequestID:   "req-1",
		RunID:       "run-1",
		Capability:  "modeling",
		Messages:    []llm.Message{{Role: "user", Content: "secret requirements"}},
		Response:    "{}",
		TotalTokens: 42,
	}
	require.NoError(t, p.Record(context.Background(), rec))

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "test.llm.call", conn.msgs[0].subject)
	assert.NotContains(t, string(conn.msgs[0].data), "secret requirements")

	var got llm.CallRecord
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &got))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, 42, got.TotalTokens)
	assert.Len(t, rec.Messages, 1, "caller's record is untouched")

	conn.err = errors.New("down")
	assert.Error(t, p.Record(context.Background(), rec))
}
