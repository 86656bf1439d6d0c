// Package agent defines the boundary between the modeling workflow and the
// generative model that answers its prompts.
//
// The workflow depends only on Invoker. Transport, retries, rate limits,
// credentials and timeouts belong to the implementation.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// Role names the specialist persona a prompt is addressed to.
type Role string

const (
	RoleAnalyst          Role = "requirements_analyst"
	RoleUseCaseModeler   Role = "usecase_modeler"
	RoleClassDesigner    Role = "class_diagram_designer"
	RoleSequenceDesigner Role = "sequence_diagram_designer"
	RoleConstraintExpert Role = "ocl_expert"
	RoleValidator        Role = "validation_expert"
	RoleCoordinator      Role = "coordinator"
)

// Roles returns every role in workflow order.
func Roles() []Role {
	return []Role{
		RoleAnalyst,
		RoleUseCaseModeler,
		RoleClassDesigner,
		RoleSequenceDesigner,
		RoleConstraintExpert,
		RoleValidator,
		RoleCoordinator,
	}
}

// Call is one prompt to the generative model.
type Call struct {
	Role Role
	// Instructions is the role's standing instruction (system prompt).
	Instructions string
	// Input is the task text for this call.
	Input string
	// Model is an optional model identifier; empty lets the invoker choose.
	Model string
	// MaxTokens caps the response length; 0 uses the invoker default.
	MaxTokens int
}

// Invoker sends a Call and returns the model's raw text.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, call Call) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, call Call) (string, error) {
	return f(ctx, call)
}

// InvocationError reports a failure at the invoker boundary.
type InvocationError struct {
	Role Role
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Role, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsInvocation reports whether err is or wraps an InvocationError.
func IsInvocation(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

type runIDKey struct{}

// WithRunID attaches the modeling run ID to ctx for invokers that record calls.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run ID attached by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
