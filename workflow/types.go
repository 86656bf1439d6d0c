// Package workflow drives a modeling run: it analyzes requirements, generates
// the use-case, class, sequence and constraint parts through an agent.Invoker,
// then validates and revises the candidate model for a bounded number of
// rounds before returning a terminal Result.
//
// A run is strictly sequential. Every stage waits for its agent call before
// the next starts, and sequence diagrams are generated in use case order.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semmodel/dsl"
)

// Stage is a state of the run state machine.
type Stage string

const (
	StageAnalyze             Stage = "ANALYZE"
	StageGenerateUseCases    Stage = "GENERATE_USECASES"
	StageGenerateClasses     Stage = "GENERATE_CLASSES"
	StageGenerateSequences   Stage = "GENERATE_SEQUENCES"
	StageGenerateConstraints Stage = "GENERATE_CONSTRAINTS"
	StageValidate            Stage = "VALIDATE"
	StageImprove             Stage = "IMPROVE"
	StageAccept              Stage = "ACCEPT"
	StageAbandon             Stage = "ABANDON"
)

// StageOutcome is how a single stage (or stage item) ended.
type StageOutcome string

const (
	OutcomeSuccess StageOutcome = "success"
	OutcomeSkipped StageOutcome = "skipped"
	OutcomeAborted StageOutcome = "aborted"
)

// StageResult is the explicit result of one stage: a value on success, a
// reason when skipped, an error when aborted.
type StageResult[T any] struct {
	Outcome StageOutcome
	Value   T
	Reason  string
	Err     error
}

func succeeded[T any](v T) StageResult[T] {
	return StageResult[T]{Outcome: OutcomeSuccess, Value: v}
}

func skipped[T any](v T, reason string) StageResult[T] {
	return StageResult[T]{Outcome: OutcomeSkipped, Value: v, Reason: reason}
}

func aborted[T any](err error) StageResult[T] {
	return StageResult[T]{Outcome: OutcomeAborted, Reason: err.Error(), Err: err}
}

// StageRecord is the log entry kept for every stage and stage item.
type StageRecord struct {
	Stage     Stage         `json:"stage"`
	Outcome   StageOutcome  `json:"outcome"`
	Iteration int           `json:"iteration,omitempty"`
	Item      string        `json:"item,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Termination classifies how a run ended.
type Termination string

const (
	// AcceptedClean means the validator passed the candidate.
	AcceptedClean Termination = "accepted_clean"
	// AcceptedWithCaveat means the candidate is best effort; see Caveat.
	AcceptedWithCaveat Termination = "accepted_with_caveat"
	// Abandoned means the validator rejected the candidate outright.
	Abandoned Termination = "abandoned"
)

// Caveat qualifies an AcceptedWithCaveat result.
type Caveat string

const (
	CaveatNone                Caveat = ""
	CaveatIterationsExhausted Caveat = "iterations_exhausted"
	CaveatImprovementFailed   Caveat = "improvement_failed"
)

// Result is the terminal outcome of a run. Model is always set and is not
// modified by the controller after Run returns.
type Result struct {
	RunID         string             `json:"run_id"`
	Termination   Termination        `json:"termination"`
	Caveat        Caveat             `json:"caveat,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Model         *dsl.DomainModel   `json:"model"`
	Iterations    int                `json:"iterations"`
	ValidateCalls int                `json:"validate_calls"`
	ImproveCalls  int                `json:"improve_calls"`
	Validation    *ValidationOutcome `json:"validation,omitempty"`
	Stages        []StageRecord      `json:"stages"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   time.Time          `json:"completed_at"`
}

// Accepted reports whether the run ended in either accepted state.
func (r *Result) Accepted() bool {
	return r.Termination == AcceptedClean || r.Termination == AcceptedWithCaveat
}

// Status is the validator's verdict on a candidate.
type Status string

const (
	StatusPass             Status = "pass"
	StatusNeedsImprovement Status = "needs_improvement"
	StatusFail             Status = "fail"
)

// ValidationOutcome is the decoded validation report for one round.
type ValidationOutcome struct {
	Status   Status         `json:"status"`
	Feedback string         `json:"feedback"`
	Issues   map[string]any `json:"details"`
	// Fallback is set when the validator call or its decoding failed and the
	// optimistic default was substituted.
	Fallback bool `json:"fallback,omitempty"`
	// Gated is set when consistency errors downgraded a pass.
	Gated bool `json:"gated,omitempty"`
}

// ErrEmptyRequirements is returned when a run is started without input text.
var ErrEmptyRequirements = errors.New("requirements text is empty")

// StageError reports a backbone stage failure with the raw model text that
// caused it. Err is an *llm.ExtractionError, *dsl.SchemaValidationError or
// *agent.InvocationError.
type StageError struct {
	Stage Stage
	Raw   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
