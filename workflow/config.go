package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/semmodel/agent"
)

// Defaults for Config.
const (
	DefaultMaxIterations = 3
	DefaultMaxTokens     = 2048
)

// Config controls a Controller.
type Config struct {
	// MaxIterations bounds VALIDATE/IMPROVE rounds, not the generation stages.
	MaxIterations int
	// MaxTokens is the default response cap for every agent call.
	MaxTokens int
	// Models optionally pins a model identifier per role.
	Models map[agent.Role]string
	// RoleMaxTokens overrides MaxTokens per role.
	RoleMaxTokens map[agent.Role]int
	// FormatRetries re-prompts a backbone stage this many times with the
	// decoding error before aborting.
	FormatRetries int
	// IntegrityGate downgrades a pass verdict to needs_improvement when the
	// consistency check reports errors.
	IntegrityGate bool
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		MaxTokens:     DefaultMaxTokens,
		IntegrityGate: true,
	}
}

func (c Config) maxTokens(role agent.Role) int {
	if n, ok := c.RoleMaxTokens[role]; ok && n > 0 {
		return n
	}
	return c.MaxTokens
}

// EventKind distinguishes observer events.
type EventKind string

const (
	EventRunStarted  EventKind = "run_started"
	EventStage       EventKind = "stage"
	EventRunFinished EventKind = "run_finished"
)

// Event is emitted to an Observer as a run progresses.
type Event struct {
	Kind   EventKind    `json:"kind"`
	RunID  string       `json:"run_id"`
	Input  string       `json:"input,omitempty"`
	Record *StageRecord `json:"record,omitempty"`
	// Result is set on EventRunFinished for runs that reached a terminal state.
	Result *Result `json:"-"`
	// Err is set on EventRunFinished for aborted runs.
	Err  error     `json:"-"`
	Time time.Time `json:"time"`
}

// Observer receives run events. Observe must not block for long; it runs on
// the workflow's goroutine.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, e Event) {
	for _, o := range m {
		o.Observe(ctx, e)
	}
}

// MultiObserver fans events out to every non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}
