package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/coerce"
	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow/prompts"
	"github.com/google/uuid"
)

// Request is the input of one run.
type Request struct {
	// Name is the model name; defaults to the use case diagram name.
	Name string
	// Description defaults to the use case diagram description.
	Description string
	// Requirements is the raw requirements text.
	Requirements string
	// Source identifies where the requirements came from, for logs and events.
	Source string
	// Metadata is copied into the model's metadata.
	Metadata map[string]any
}

// Controller runs the modeling state machine. A Controller holds no per-run
// state and may serve concurrent runs.
type Controller struct {
	invoker  agent.Invoker
	cfg      Config
	logger   *slog.Logger
	observer Observer
	newID    func() string
}

// NewController creates a controller around an invoker.
func NewController(invoker agent.Invoker, cfg Config, opts ...Option) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	c := &Controller{
		invoker: invoker,
		cfg:     cfg,
		logger:  slog.Default(),
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// state is the transient per-run state. It is owned by the goroutine
// executing Run.
type state struct {
	runID     string
	req       Request
	logger    *slog.Logger
	analysis  string
	candidate *dsl.DomainModel
	iteration int
	validates int
	improves  int
	records   []StageRecord
	started   time.Time
}

// Run executes a full modeling run. A backbone failure returns a
// *StageError; every other failure degrades into the Result.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Requirements) == "" {
		return nil, ErrEmptyRequirements
	}

	st := &state{
		runID:   c.newID(),
		req:     req,
		started: time.Now(),
	}
	st.logger = c.logger.With("run_id", st.runID)
	ctx = agent.WithRunID(ctx, st.runID)
	c.emit(ctx, Event{Kind: EventRunStarted, RunID: st.runID, Input: req.Source, Time: st.started})
	st.logger.Info("Modeling run started", "source", req.Source, "max_iterations", c.cfg.MaxIterations)

	res, err := c.run(ctx, st)
	if err != nil {
		st.logger.Error("Modeling run aborted", "error", err)
		c.emit(ctx, Event{Kind: EventRunFinished, RunID: st.runID, Input: req.Source, Err: err, Time: time.Now()})
		return nil, err
	}

	st.logger.Info("Modeling run finished",
		"termination", res.Termination,
		"caveat", res.Caveat,
		"iterations", res.Iterations,
		"validate_calls", res.ValidateCalls,
		"improve_calls", res.ImproveCalls)
	c.emit(ctx, Event{Kind: EventRunFinished, RunID: st.runID, Input: req.Source, Result: res, Time: res.CompletedAt})
	return res, nil
}

func (c *Controller) run(ctx context.Context, st *state) (*Result, error) {
	analysis := c.analyze(ctx, st)
	st.analysis = analysis.Value

	usecases := c.generateUseCases(ctx, st)
	if usecases.Outcome == OutcomeAborted {
		return nil, usecases.Err
	}
	ucJSON := compactJSON(usecases.Value)

	classes := c.generateClasses(ctx, st, ucJSON)
	if classes.Outcome == OutcomeAborted {
		return nil, classes.Err
	}
	classJSON := compactJSON(classes.Value)

	sequences := c.generateSequences(ctx, st, usecases.Value, classJSON)
	constraints := c.generateConstraints(ctx, st, ucJSON, classJSON)

	st.candidate = c.assemble(st, usecases.Value, classes.Value, sequences.Value, constraints.Value)
	return c.iterate(ctx, st)
}

// analyze produces advisory free text. A failure leaves the analysis empty.
func (c *Controller) analyze(ctx context.Context, st *state) StageResult[string] {
	start := time.Now()
	text, err := c.invoke(ctx, agent.RoleAnalyst, prompts.AnalysisInput(st.req.Requirements))
	if err != nil {
		st.logger.Warn("Analysis failed, continuing without it", "stage", StageAnalyze, "error", err)
		c.record(ctx, st, StageRecord{Stage: StageAnalyze, Outcome: OutcomeSkipped, Reason: err.Error(), Duration: time.Since(start)})
		return skipped("", err.Error())
	}
	c.record(ctx, st, StageRecord{Stage: StageAnalyze, Outcome: OutcomeSuccess, Duration: time.Since(start)})
	return succeeded(strings.TrimSpace(text))
}

func (c *Controller) generateUseCases(ctx context.Context, st *state) StageResult[dsl.UseCaseDiagram] {
	return backbone(ctx, c, st, StageGenerateUseCases, agent.RoleUseCaseModeler,
		prompts.UseCaseInput(st.req.Requirements, st.analysis),
		coerce.UseCaseDiagram, dsl.BuildUseCaseDiagram)
}

func (c *Controller) generateClasses(ctx context.Context, st *state, ucJSON string) StageResult[dsl.ClassDiagram] {
	return backbone(ctx, c, st, StageGenerateClasses, agent.RoleClassDesigner,
		prompts.ClassInput(st.req.Requirements, st.analysis, ucJSON),
		coerce.ClassDiagram, dsl.BuildClassDiagram)
}

// backbone runs a structured generation stage whose failure aborts the run.
func backbone[T any](ctx context.Context, c *Controller, st *state, stage Stage, role agent.Role,
	input string, shape *coerce.Shape, build func(any) (T, error)) StageResult[T] {
	start := time.Now()
	task := input

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return abortStage[T](ctx, c, st, stage, "", err, start)
		}
		raw, err := c.invoke(ctx, role, task)
		if err != nil {
			return abortStage[T](ctx, c, st, stage, "", err, start)
		}
		v, err := decodeStructured(raw, shape, build)
		if err == nil {
			c.record(ctx, st, StageRecord{Stage: stage, Outcome: OutcomeSuccess, Duration: time.Since(start)})
			return succeeded(v)
		}
		if attempt >= c.cfg.FormatRetries {
			return abortStage[T](ctx, c, st, stage, raw, err, start)
		}
		st.logger.Warn("Stage output rejected, retrying with correction",
			"stage", stage, "attempt", attempt+1, "max_retries", c.cfg.FormatRetries, "error", err)
		task = prompts.FormatCorrection(input, raw, err)
	}
}

func abortStage[T any](ctx context.Context, c *Controller, st *state, stage Stage, raw string, err error, start time.Time) StageResult[T] {
	c.record(ctx, st, StageRecord{Stage: stage, Outcome: OutcomeAborted, Reason: err.Error(), Duration: time.Since(start)})
	return aborted[T](&StageError{Stage: stage, Raw: raw, Err: err})
}

// decodeStructured runs raw model text through extraction, coercion and
// schema construction.
func decodeStructured[T any](raw string, shape *coerce.Shape, build func(any) (T, error)) (T, error) {
	var zero T
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return zero, err
	}
	return build(coerce.Apply(obj, shape))
}

// invoke sends one call for role, wrapping failures as *agent.InvocationError.
func (c *Controller) invoke(ctx context.Context, role agent.Role, input string) (string, error) {
	call := agent.Call{
		Role:         role,
		Instructions: prompts.ForRole(role),
		Input:        input,
		Model:        c.cfg.Models[role],
		MaxTokens:    c.cfg.maxTokens(role),
	}
	text, err := c.invoker.Invoke(ctx, call)
	if err != nil {
		if agent.IsInvocation(err) {
			return "", err
		}
		return "", &agent.InvocationError{Role: role, Err: err}
	}
	return text, nil
}

func (c *Controller) assemble(st *state, uc dsl.UseCaseDiagram, cd dsl.ClassDiagram,
	seqs []dsl.SequenceDiagram, cons []dsl.Constraint) *dsl.DomainModel {
	name := st.req.Name
	if name == "" {
		name = uc.Name
	}
	description := st.req.Description
	if description == "" {
		description = uc.Description
	}

	metadata := make(map[string]any, len(st.req.Metadata)+2)
	for k, v := range st.req.Metadata {
		metadata[k] = v
	}
	metadata["run_id"] = st.runID
	if st.req.Source != "" {
		metadata["source"] = st.req.Source
	}

	return &dsl.DomainModel{
		Name:             name,
		Description:      description,
		UseCaseDiagram:   uc,
		SequenceDiagrams: seqs,
		ClassDiagram:     cd,
		Constraints:      cons,
		Metadata:         metadata,
	}
}

func (c *Controller) record(ctx context.Context, st *state, rec StageRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	st.records = append(st.records, rec)
	st.logger.Debug("Stage finished",
		"stage", rec.Stage,
		"outcome", rec.Outcome,
		"iteration", rec.Iteration,
		"item", rec.Item,
		"duration", rec.Duration)
	c.emit(ctx, Event{Kind: EventStage, RunID: st.runID, Input: st.req.Source, Record: &rec, Time: rec.At})
}

func (c *Controller) emit(ctx context.Context, e Event) {
	if c.observer == nil {
		return
	}
	c.observer.Observe(ctx, e)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
