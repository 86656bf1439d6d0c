package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/coerce"
	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow/prompts"
	"github.com/c360studio/semmodel/workflow/validation"
)

// errNoParts is returned when an improvement carries none of the model parts.
var errNoParts = errors.New("improvement contains no model parts")

// iterate alternates VALIDATE and IMPROVE until the validator passes the
// candidate, rejects it, or the iteration budget runs out.
func (c *Controller) iterate(ctx context.Context, st *state) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.iteration++
		outcome := c.validate(ctx, st)

		switch outcome.Status {
		case StatusPass:
			return c.finish(st, AcceptedClean, CaveatNone, "", outcome), nil

		case StatusNeedsImprovement:
			if st.iteration >= c.cfg.MaxIterations {
				st.logger.Warn("Iteration budget exhausted, accepting best effort",
					"iteration", st.iteration, "max_iterations", c.cfg.MaxIterations)
				return c.finish(st, AcceptedWithCaveat, CaveatIterationsExhausted, outcome.Feedback, outcome), nil
			}
			improved, err := c.improve(ctx, st, outcome.Feedback)
			if err != nil {
				st.logger.Warn("Improvement failed, keeping current candidate",
					"iteration", st.iteration, "error", err)
				return c.finish(st, AcceptedWithCaveat, CaveatImprovementFailed, err.Error(), outcome), nil
			}
			st.candidate = improved

		default:
			reason := fmt.Sprintf("validation status %q", outcome.Status)
			if outcome.Feedback != "" {
				reason += ": " + outcome.Feedback
			}
			return c.finish(st, Abandoned, CaveatNone, reason, outcome), nil
		}
	}
}

// validate runs the consistency check and the validator agent against the
// current candidate. It never fails: an unusable verdict becomes an
// optimistic pass.
func (c *Controller) validate(ctx context.Context, st *state) *ValidationOutcome {
	start := time.Now()
	report := validation.ValidateModel(st.candidate)
	st.validates++

	raw, err := c.invoke(ctx, agent.RoleValidator,
		prompts.ValidationInput(st.req.Requirements, indentJSON(st.candidate), report.FormatFeedback()))
	var outcome *ValidationOutcome
	if err == nil {
		outcome, err = parseValidation(raw)
	}
	if err != nil {
		st.logger.Warn("Validator output unusable, assuming pass",
			"iteration", st.iteration, "error", err)
		outcome = &ValidationOutcome{Status: StatusPass, Issues: map[string]any{}, Fallback: true}
	}

	outcome.Issues["integrity"] = report
	if c.cfg.IntegrityGate && !report.IsValid && outcome.Status == StatusPass {
		outcome.Status = StatusNeedsImprovement
		outcome.Gated = true
		outcome.Feedback = joinFeedback(outcome.Feedback, report.FormatFeedback())
		st.logger.Info("Consistency errors downgraded pass verdict",
			"iteration", st.iteration, "errors", len(report.Errors))
	}

	rec := StageRecord{
		Stage:     StageValidate,
		Outcome:   OutcomeSuccess,
		Iteration: st.iteration,
		Reason:    string(outcome.Status),
		Duration:  time.Since(start),
	}
	if outcome.Fallback {
		rec.Outcome = OutcomeSkipped
		rec.Reason = err.Error()
	}
	c.record(ctx, st, rec)
	return outcome
}

// parseValidation decodes a validator reply. A missing status means pass.
func parseValidation(raw string) (*ValidationOutcome, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	obj = coerce.Apply(obj, coerce.ValidationReport)

	status, ok := obj["status"].(string)
	if !ok {
		return nil, fmt.Errorf("validation status is %T, want string", obj["status"])
	}
	feedback, _ := obj["feedback"].(string)
	details, ok := obj["details"].(map[string]any)
	if !ok {
		details = map[string]any{"raw": obj["details"]}
	}
	return &ValidationOutcome{
		Status:   Status(status),
		Feedback: strings.TrimSpace(feedback),
		Issues:   details,
	}, nil
}

// improve asks the coordinator to revise the candidate. Parts missing from
// the reply or null are kept; a present part that fails to decode fails the
// whole improvement.
func (c *Controller) improve(ctx context.Context, st *state, feedback string) (*dsl.DomainModel, error) {
	start := time.Now()
	st.improves++

	improved, err := c.revise(ctx, st, feedback)
	rec := StageRecord{Stage: StageImprove, Outcome: OutcomeSuccess, Iteration: st.iteration, Duration: time.Since(start)}
	if err != nil {
		rec.Outcome = OutcomeSkipped
		rec.Reason = err.Error()
	}
	c.record(ctx, st, rec)
	return improved, err
}

func (c *Controller) revise(ctx context.Context, st *state, feedback string) (*dsl.DomainModel, error) {
	raw, err := c.invoke(ctx, agent.RoleCoordinator, prompts.ImprovementInput(feedback, indentJSON(st.candidate)))
	if err != nil {
		return nil, err
	}
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	obj = coerce.Apply(obj, coerce.Improvement)

	next := st.candidate.Clone()
	parts := 0
	if v := obj["usecase_diagram"]; v != nil {
		d, err := dsl.BuildUseCaseDiagram(v)
		if err != nil {
			return nil, err
		}
		next.UseCaseDiagram = d
		parts++
	}
	if v := obj["class_diagram"]; v != nil {
		d, err := dsl.BuildClassDiagram(v)
		if err != nil {
			return nil, err
		}
		next.ClassDiagram = d
		parts++
	}
	if v := obj["sequence_diagrams"]; v != nil {
		seqs, err := buildList(v, dsl.BuildSequenceDiagram)
		if err != nil {
			return nil, err
		}
		next.SequenceDiagrams = seqs
		parts++
	}
	if v := obj["ocl_constraints"]; v != nil {
		cons, err := buildList(v, dsl.BuildConstraint)
		if err != nil {
			return nil, err
		}
		next.Constraints = cons
		parts++
	}
	if parts == 0 {
		return nil, errNoParts
	}
	return next, nil
}

func buildList[T any](v any, build func(any) (T, error)) ([]T, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		t, err := build(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Controller) finish(st *state, term Termination, caveat Caveat, reason string, last *ValidationOutcome) *Result {
	final := StageAccept
	if term == Abandoned {
		final = StageAbandon
	}
	st.records = append(st.records, StageRecord{
		Stage:     final,
		Outcome:   OutcomeSuccess,
		Iteration: st.iteration,
		Reason:    string(term),
		At:        time.Now(),
	})

	return &Result{
		RunID:         st.runID,
		Termination:   term,
		Caveat:        caveat,
		Reason:        reason,
		Model:         st.candidate,
		Iterations:    st.iteration,
		ValidateCalls: st.validates,
		ImproveCalls:  st.improves,
		Validation:    last,
		Stages:        st.records,
		StartedAt:     st.started,
		CompletedAt:   time.Now(),
	}
}

func joinFeedback(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
