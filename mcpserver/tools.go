package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/workflow"
	"github.com/c360studio/semmodel/workflow/validation"
)

// GenerateInput is the input schema for generate_model.
type GenerateInput struct {
	Requirements string `json:"requirements" jsonschema:"the requirements text to model"`
	Name         string `json:"name,omitempty" jsonschema:"model name; defaults to the use case diagram name"`
	Description  string `json:"description,omitempty" jsonschema:"model description"`
}

// GenerateOutput is the output schema for generate_model.
type GenerateOutput struct {
	RunID       string `json:"run_id"`
	Termination string `json:"termination"`
	Caveat      string `json:"caveat,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Iterations  int    `json:"iterations"`
	// Model is the domain model in its persisted JSON form.
	Model string `json:"model"`
}

// ModelInput is the input schema for the model checking tools.
type ModelInput struct {
	Model string `json:"model" jsonschema:"a domain model in its persisted JSON form"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_model",
		Description: "Generate a validated domain model (use cases, classes, sequences, OCL constraints) from requirements text",
	}, s.handleGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_model",
		Description: "Check a domain model for duplicate names and dangling references",
	}, s.handleValidate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_model",
		Description: "Compute element counts and a complexity score for a domain model",
	}, s.handleAnalyze)
}

func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	if strings.TrimSpace(input.Requirements) == "" {
		return nil, GenerateOutput{}, workflow.ErrEmptyRequirements
	}

	res, err := s.runner.Run(ctx, workflow.Request{
		Name:         input.Name,
		Description:  input.Description,
		Requirements: input.Requirements,
		Source:       "mcp",
	})
	if err != nil {
		var stageErr *workflow.StageError
		if errors.As(err, &stageErr) {
			s.logger.Warn("generate_model aborted", "stage", stageErr.Stage, "error", stageErr.Err)
		}
		return nil, GenerateOutput{}, err
	}

	data, err := dsl.Marshal(res.Model)
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	return nil, GenerateOutput{
		RunID:       res.RunID,
		Termination: string(res.Termination),
		Caveat:      string(res.Caveat),
		Reason:      res.Reason,
		Iterations:  res.Iterations,
		Model:       string(data),
	}, nil
}

func parseModel(input ModelInput) (*dsl.DomainModel, error) {
	if strings.TrimSpace(input.Model) == "" {
		return nil, errors.New("model is required")
	}
	m, err := dsl.Unmarshal([]byte(input.Model))
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return m, nil
}

func (s *Server) handleValidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ModelInput,
) (*mcp.CallToolResult, validation.Report, error) {
	m, err := parseModel(input)
	if err != nil {
		return nil, validation.Report{}, err
	}
	return nil, *validation.ValidateModel(m), nil
}

func (s *Server) handleAnalyze(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ModelInput,
) (*mcp.CallToolResult, dsl.Complexity, error) {
	m, err := parseModel(input)
	if err != nil {
		return nil, dsl.Complexity{}, err
	}
	return nil, dsl.AnalyzeComplexity(m), nil
}
