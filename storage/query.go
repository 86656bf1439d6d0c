package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/workflow"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	ID            string     `json:"id"`
	Source        string     `json:"source,omitempty"`
	Name          string     `json:"name,omitempty"`
	Status        string     `json:"status"`
	Caveat        string     `json:"caveat,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Error         string     `json:"error,omitempty"`
	Iterations    int        `json:"iterations"`
	ValidateCalls int        `json:"validate_calls"`
	ImproveCalls  int        `json:"improve_calls"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Run is a stored run with its stage history and final model.
type Run struct {
	RunSummary
	Model      *dsl.DomainModel            `json:"model,omitempty"`
	Validation *workflow.ValidationOutcome `json:"validation,omitempty"`
	Stages     []workflow.StageRecord      `json:"stages"`
}

// CallSummary is a stored LLM call.
type CallSummary struct {
	RequestID        string    `json:"request_id"`
	Role             string    `json:"role,omitempty"`
	Capability       string    `json:"capability"`
	Endpoint         string    `json:"endpoint,omitempty"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Retries          int       `json:"retries"`
	Fallbacks        []string  `json:"fallbacks,omitempty"`
	Error            string    `json:"error,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	StartedAt        time.Time `json:"started_at"`
}

// ListOptions filters List.
type ListOptions struct {
	// Status limits results to one status; empty means all.
	Status string
	// Limit caps the number of rows; zero means 50.
	Limit int
}

const runColumns = `id, source, name, status, caveat, reason, error, iterations,
	validate_calls, improve_calls, started_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var (
		r         RunSummary
		started   string
		completed sql.NullString
	)
	err := row.Scan(&r.ID, &r.Source, &r.Name, &r.Status, &r.Caveat, &r.Reason, &r.Error,
		&r.Iterations, &r.ValidateCalls, &r.ImproveCalls, &started, &completed)
	if err != nil {
		return r, err
	}
	r.StartedAt = parseTime(started)
	if completed.Valid {
		t := parseTime(completed.String)
		r.CompletedAt = &t
	}
	return r, nil
}

// List returns runs, most recent first.
func (s *RunStore) List(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, opts.Status)
	}
	query += " ORDER BY started_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a run with its stages and model. A missing run returns
// ErrNotFound.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+", model_json, validation_json FROM runs WHERE id = ?", id)

	var (
		run                       Run
		started                   string
		completed, model, valJSON sql.NullString
	)
	err := row.Scan(&run.ID, &run.Source, &run.Name, &run.Status, &run.Caveat, &run.Reason,
		&run.Error, &run.Iterations, &run.ValidateCalls, &run.ImproveCalls, &started, &completed,
		&model, &valJSON)
	if isNotFound(err) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	run.StartedAt = parseTime(started)
	if completed.Valid {
		t := parseTime(completed.String)
		run.CompletedAt = &t
	}
	if model.Valid {
		m, err := dsl.Unmarshal([]byte(model.String))
		if err != nil {
			return nil, fmt.Errorf("decoding stored model: %w", err)
		}
		run.Model = m
	}
	if valJSON.Valid {
		var v workflow.ValidationOutcome
		if err := json.Unmarshal([]byte(valJSON.String), &v); err != nil {
			return nil, fmt.Errorf("decoding stored validation: %w", err)
		}
		run.Validation = &v
	}

	stages, err := s.stages(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return &run, nil
}

func (s *RunStore) stages(ctx context.Context, runID string) ([]workflow.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, outcome, iteration, item, reason, duration_ms, at
		FROM stages WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}
	defer rows.Close()

	records := []workflow.StageRecord{}
	for rows.Next() {
		var (
			rec            workflow.StageRecord
			stage, outcome string
			durationMs     int64
			at             string
		)
		if err := rows.Scan(&stage, &outcome, &rec.Iteration, &rec.Item, &rec.Reason, &durationMs, &at); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		rec.Stage = workflow.Stage(stage)
		rec.Outcome = workflow.StageOutcome(outcome)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.At = parseTime(at)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Calls returns the LLM calls recorded for a run, oldest first.
func (s *RunStore) Calls(ctx context.Context, runID string) ([]CallSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, role, capability, endpoint, model, prompt_tokens, completion_tokens,
			retries, fallbacks, error, duration_ms, started_at
		FROM llm_calls WHERE run_id = ? ORDER BY started_at, request_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing llm calls: %w", err)
	}
	defer rows.Close()

	calls := []CallSummary{}
	for rows.Next() {
		var (
			c                  CallSummary
			fallbacks, started string
		)
		if err := rows.Scan(&c.RequestID, &c.Role, &c.Capability, &c.Endpoint, &c.Model,
			&c.PromptTokens, &c.CompletionTokens, &c.Retries, &fallbacks, &c.Error,
			&c.DurationMs, &started); err != nil {
			return nil, fmt.Errorf("scanning llm call: %w", err)
		}
		if fallbacks != "" {
			c.Fallbacks = strings.Split(fallbacks, ",")
		}
		c.StartedAt = parseTime(started)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Delete removes a run and its stages.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
