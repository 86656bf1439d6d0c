package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/workflow"
)

const modelJSON = `{
	"name": "ATM",
	"usecase_diagram": {
		"name": "Banking",
		"actors": [{"name": "Customer", "kind": "primary"}],
		"usecases": [{"name": "Withdraw", "actor": "Customer", "includes": ["Authenticate"]}]
	},
	"class_diagram": {
		"name": "Domain",
		"classes": [{"name": "Account"}, {"name": "Card"}],
		"relationships": [{"source": "Card", "target": "Account", "kind": "association"}]
	}
}`

type fakeRunner struct {
	got workflow.Request
	res *workflow.Result
	err error
}

func (f *fakeRunner) Run(_ context.Context, req workflow.Request) (*workflow.Result, error) {
	f.got = req
	return f.res, f.err
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s, err := NewServer(runner, nil)
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresRunner(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestHandleGenerate(t *testing.T) {
	m, err := dsl.Unmarshal([]byte(modelJSON))
	require.NoError(t, err)
	runner := &fakeRunner{res: &workflow.Result{
		RunID:       "run-1",
		Termination: workflow.AcceptedWithCaveat,
		Caveat:      workflow.CaveatIterationsExhausted,
		Reason:      "add card expiry",
		Iterations:  3,
		Model:       m,
	}}
	s := newTestServer(t, runner)

	_, out, err := s.handleGenerate(context.Background(), nil, GenerateInput{
		Requirements: "Customers withdraw cash.",
		Name:         "ATM",
	})
	require.NoError(t, err)

	assert.Equal(t, "mcp", runner.got.Source)
	assert.Equal(t, "ATM", runner.got.Name)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "accepted_with_caveat", out.Termination)
	assert.Equal(t, "iterations_exhausted", out.Caveat)
	assert.Equal(t, 3, out.Iterations)

	back, err := dsl.Unmarshal([]byte(out.Model))
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Card"}, back.ClassDiagram.ClassNames())
}

func TestHandleGenerate_Errors(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(t, runner)

	_, _, err := s.handleGenerate(context.Background(), nil, GenerateInput{Requirements: "  "})
	assert.ErrorIs(t, err, workflow.ErrEmptyRequirements)
	assert.Empty(t, runner.got.Requirements, "runner not called")

	runner.err = &workflow.StageError{Stage: workflow.StageGenerateUseCases, Err: errors.New("no JSON object found")}
	_, _, err = s.handleGenerate(context.Background(), nil, GenerateInput{Requirements: "text"})
	var stageErr *workflow.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, workflow.StageGenerateUseCases, stageErr.Stage)
}

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	_, report, err := s.handleValidate(context.Background(), nil, ModelInput{Model: modelJSON})
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, `use case "Withdraw" includes unknown use case "Authenticate"`, report.Errors[0].Message)
	assert.Equal(t, 2, report.ClassCount)

	_, _, err = s.handleValidate(context.Background(), nil, ModelInput{})
	assert.EqualError(t, err, "model is required")

	_, _, err = s.handleValidate(context.Background(), nil, ModelInput{Model: `{"name": "x"}`})
	require.Error(t, err)
	assert.True(t, dsl.IsSchemaValidation(err))
}

func TestHandleAnalyze(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	_, c, err := s.handleAnalyze(context.Background(), nil, ModelInput{Model: modelJSON})
	require.NoError(t, err)
	assert.Equal(t, 1, c.UseCases)
	assert.Equal(t, 2, c.Classes)
	assert.Equal(t, 1, c.Relationships)
	assert.InDelta(t, 0.3+0.2+0.6+0.1, c.Score, 1e-9)
	assert.Equal(t, dsl.ComplexitySimple, c.Level)
}
