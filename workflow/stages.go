package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/coerce"
	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/workflow/prompts"
)

// generateSequences asks for one sequence diagram per use case, in
// declaration order. A use case whose diagram cannot be produced is skipped.
func (c *Controller) generateSequences(ctx context.Context, st *state, uc dsl.UseCaseDiagram, classJSON string) StageResult[[]dsl.SequenceDiagram] {
	diagrams := make([]dsl.SequenceDiagram, 0, len(uc.UseCases))
	systemName := st.req.Name
	if systemName == "" {
		systemName = uc.Name
	}

	dropped := 0
	for _, u := range uc.UseCases {
		start := time.Now()
		sd, raw, err := c.sequenceFor(ctx, u, systemName, classJSON)
		if err != nil {
			dropped++
			st.logger.Warn("Skipping sequence diagram",
				"stage", StageGenerateSequences,
				"usecase", u.Name,
				"raw_len", len(raw),
				"error", err)
			c.record(ctx, st, StageRecord{Stage: StageGenerateSequences, Outcome: OutcomeSkipped, Item: u.Name, Reason: err.Error(), Duration: time.Since(start)})
			continue
		}
		diagrams = append(diagrams, sd)
		c.record(ctx, st, StageRecord{Stage: StageGenerateSequences, Outcome: OutcomeSuccess, Item: u.Name, Duration: time.Since(start)})
	}

	if dropped > 0 {
		return skipped(diagrams, fmt.Sprintf("%d of %d use cases skipped", dropped, len(uc.UseCases)))
	}
	return succeeded(diagrams)
}

func (c *Controller) sequenceFor(ctx context.Context, u dsl.UseCase, systemName, classJSON string) (dsl.SequenceDiagram, string, error) {
	raw, err := c.invoke(ctx, agent.RoleSequenceDesigner, prompts.SequenceInput(u, systemName, classJSON))
	if err != nil {
		return dsl.SequenceDiagram{}, "", err
	}
	sd, err := decodeStructured(raw, coerce.SequenceDiagram, dsl.BuildSequenceDiagram)
	if err != nil {
		return dsl.SequenceDiagram{}, raw, err
	}
	if sd.UseCase == "" {
		sd.UseCase = u.Name
	}
	return sd, raw, nil
}

// generateConstraints asks for all constraints in one call. Each array
// element is decoded on its own; malformed elements are skipped. If the call
// or the array itself fails, the model gets no constraints.
func (c *Controller) generateConstraints(ctx context.Context, st *state, ucJSON, classJSON string) StageResult[[]dsl.Constraint] {
	start := time.Now()
	out := []dsl.Constraint{}

	raw, err := c.invoke(ctx, agent.RoleConstraintExpert, prompts.ConstraintInput(st.req.Requirements, classJSON, ucJSON))
	if err == nil {
		var items []any
		items, err = constraintItems(raw)
		if err == nil {
			return c.decodeConstraints(ctx, st, items, start)
		}
	}

	st.logger.Warn("Skipping constraint generation", "stage", StageGenerateConstraints, "error", err)
	c.record(ctx, st, StageRecord{Stage: StageGenerateConstraints, Outcome: OutcomeSkipped, Reason: err.Error(), Duration: time.Since(start)})
	return skipped(out, err.Error())
}

func (c *Controller) decodeConstraints(ctx context.Context, st *state, items []any, start time.Time) StageResult[[]dsl.Constraint] {
	out := make([]dsl.Constraint, 0, len(items))
	dropped := 0
	for i, item := range items {
		label := fmt.Sprintf("constraint %d", i+1)
		obj, ok := item.(map[string]any)
		if !ok {
			dropped++
			st.logger.Warn("Skipping constraint", "stage", StageGenerateConstraints, "item", label, "error", "element is not an object")
			c.record(ctx, st, StageRecord{Stage: StageGenerateConstraints, Outcome: OutcomeSkipped, Item: label, Reason: "element is not an object"})
			continue
		}
		con, err := dsl.BuildConstraint(coerce.Apply(obj, coerce.Constraint))
		if err != nil {
			dropped++
			st.logger.Warn("Skipping constraint", "stage", StageGenerateConstraints, "item", label, "error", err)
			c.record(ctx, st, StageRecord{Stage: StageGenerateConstraints, Outcome: OutcomeSkipped, Item: label, Reason: err.Error()})
			continue
		}
		out = append(out, con)
	}

	rec := StageRecord{Stage: StageGenerateConstraints, Outcome: OutcomeSuccess, Duration: time.Since(start)}
	if dropped > 0 {
		rec.Reason = fmt.Sprintf("%d of %d constraints skipped", dropped, len(items))
	}
	c.record(ctx, st, rec)
	if dropped > 0 {
		return skipped(out, rec.Reason)
	}
	return succeeded(out)
}

// constraintItems finds the constraint list in raw output: a JSON array, or
// an object carrying one under a known key, or a single constraint object.
func constraintItems(raw string) ([]any, error) {
	if arr, err := llm.ExtractJSONArray(raw); err == nil {
		var items []any
		if err := json.Unmarshal([]byte(arr), &items); err == nil {
			return items, nil
		}
	}

	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"ocl_constraints", "constraints"} {
		if items, ok := obj[key].([]any); ok {
			return items, nil
		}
	}
	return []any{obj}, nil
}
