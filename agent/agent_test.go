package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolesAreDistinct(t *testing.T) {
	seen := make(map[Role]bool)
	for _, r := range Roles() {
		assert.False(t, seen[r], "duplicate role %s", r)
		seen[r] = true
	}
	assert.Len(t, seen, 7)
	assert.Equal(t, RoleAnalyst, Roles()[0])
}

func TestInvokerFunc(t *testing.T) {
	var got Call
	inv := InvokerFunc(func(_ context.Context, call Call) (string, error) {
		got = call
		return "ok", nil
	})

	out, err := inv.Invoke(context.Background(), Call{Role: RoleValidator, Input: "check"})
	assert.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, RoleValidator, got.Role)
}

func TestInvocationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("stage: %w", &InvocationError{Role: RoleClassDesigner, Err: cause})

	assert.True(t, IsInvocation(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invoke class_diagram_designer: connection refused")
	assert.False(t, IsInvocation(cause))
}

func TestRunID(t *testing.T) {
	assert.Empty(t, RunIDFrom(context.Background()))
	ctx := WithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", RunIDFrom(ctx))
}
