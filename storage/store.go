// Package storage records modeling runs, their stage history and LLM calls
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/storage/migrations"
	"github.com/c360studio/semmodel/workflow"
)

// Run statuses besides the workflow terminations.
const (
	StatusRunning = "running"
	StatusAborted = "aborted"
)

// RunStore persists runs. It is a workflow.Observer and an llm.CallRecorder,
// so wiring it into a controller and client records everything.
type RunStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var (
	_ workflow.Observer = (*RunStore)(nil)
	_ llm.CallRecorder  = (*RunStore)(nil)
)

// Open opens or creates the database at path and applies pending migrations.
func Open(path string, logger *slog.Logger) (*RunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &RunStore{db: db, path: path, logger: logger}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.path
}

// migrate runs all pending NNN_name.up.sql migrations in order.
func (s *RunStore) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.logger.Debug("Applied migration", "name", name)
	}
	return nil
}

// Observe implements workflow.Observer. Write failures are logged; they
// never affect the run.
func (s *RunStore) Observe(ctx context.Context, e workflow.Event) {
	ctx = context.WithoutCancel(ctx)

	var err error
	switch e.Kind {
	case workflow.EventRunStarted:
		err = s.startRun(ctx, e.RunID, e.Input, e.Time)
	case workflow.EventStage:
		if e.Record != nil {
			err = s.appendStage(ctx, s.db, e.RunID, *e.Record)
		}
	case workflow.EventRunFinished:
		if e.Result != nil {
			err = s.SaveResult(ctx, e.Input, e.Result)
		} else {
			err = s.abortRun(ctx, e.RunID, e.Err, e.Time)
		}
	}
	if err != nil {
		s.logger.Warn("Failed to record run event",
			"run_id", e.RunID,
			"kind", e.Kind,
			"error", err)
	}
}

func (s *RunStore) startRun(ctx context.Context, runID, source string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, source, StatusRunning, formatTime(at))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *RunStore) appendStage(ctx context.Context, db execer, runID string, rec workflow.StageRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stages (run_id, stage, outcome, iteration, item, reason, duration_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, string(rec.Stage), string(rec.Outcome), rec.Iteration, rec.Item, rec.Reason,
		rec.Duration.Milliseconds(), formatTime(rec.At))
	return err
}

func (s *RunStore) abortRun(ctx context.Context, runID string, runErr error, at time.Time) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?
	`, StatusAborted, msg, formatTime(at), runID)
	return err
}

// SaveResult stores a finished run, replacing any partial record of it.
func (s *RunStore) SaveResult(ctx context.Context, source string, res *workflow.Result) error {
	var modelJSON, validationJSON sql.NullString
	name := ""
	if res.Model != nil {
		data, err := json.Marshal(res.Model)
		if err != nil {
			return fmt.Errorf("marshalling model: %w", err)
		}
		modelJSON = sql.NullString{String: string(data), Valid: true}
		name = res.Model.Name
	}
	if res.Validation != nil {
		data, err := json.Marshal(res.Validation)
		if err != nil {
			return fmt.Errorf("marshalling validation: %w", err)
		}
		validationJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, name, status, caveat, reason, iterations, validate_calls,
			improve_calls, model_json, validation_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			caveat = excluded.caveat,
			reason = excluded.reason,
			iterations = excluded.iterations,
			validate_calls = excluded.validate_calls,
			improve_calls = excluded.improve_calls,
			model_json = excluded.model_json,
			validation_json = excluded.validation_json,
			completed_at = excluded.completed_at
	`, res.RunID, source, name, string(res.Termination), string(res.Caveat), res.Reason,
		res.Iterations, res.ValidateCalls, res.ImproveCalls, modelJSON, validationJSON,
		formatTime(res.StartedAt), formatTime(res.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM stages WHERE run_id = ?", res.RunID); err != nil {
		return err
	}
	for _, rec := range res.Stages {
		if err := s.appendStage(ctx, tx, res.RunID, rec); err != nil {
			return fmt.Errorf("saving stage: %w", err)
		}
	}
	return tx.Commit()
}

// Record implements llm.CallRecorder. Prompts and responses are not stored.
func (s *RunStore) Record(ctx context.Context, rec *llm.CallRecord) error {
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT OR REPLACE INTO llm_calls (request_id, run_id, role, capability, endpoint, model,
			provider, prompt_tokens, completion_tokens, total_tokens, finish_reason, retries,
			fallbacks, error, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RequestID, rec.RunID, rec.Role, rec.Capability, rec.Endpoint, rec.Model,
		rec.Provider, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.FinishReason,
		rec.Retries, strings.Join(rec.FallbacksUsed, ","), rec.Error, rec.DurationMs,
		formatTime(rec.StartedAt))
	if err != nil {
		return fmt.Errorf("recording llm call: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
