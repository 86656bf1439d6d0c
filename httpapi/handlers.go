package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/storage"
	"github.com/c360studio/semmodel/workflow"
	"github.com/c360studio/semmodel/workflow/validation"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func abort(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message, Details: details})
}

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Requirements string         `json:"requirements" binding:"required"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Source       string         `json:"source"`
	Metadata     map[string]any `json:"metadata"`
}

// StageFailure is the error detail of an aborted run.
type StageFailure struct {
	Stage string `json:"stage"`
	Raw   string `json:"raw,omitempty"`
}

func (s *Server) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	source := req.Source
	if source == "" {
		source = "http"
	}

	res, err := s.runner.Run(c.Request.Context(), workflow.Request{
		Name:         req.Name,
		Description:  req.Description,
		Requirements: req.Requirements,
		Source:       source,
		Metadata:     req.Metadata,
	})
	if err != nil {
		var stageErr *workflow.StageError
		switch {
		case errors.Is(err, workflow.ErrEmptyRequirements):
			abort(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		case errors.As(err, &stageErr):
			abort(c, http.StatusUnprocessableEntity, "stage_failed", err.Error(),
				StageFailure{Stage: string(stageErr.Stage), Raw: stageErr.Raw})
		default:
			s.logger.Error("Generate failed", "source", source, "error", err)
			abort(c, http.StatusInternalServerError, "internal", err.Error(), nil)
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

// bindModel reads a persisted-format model from the request body.
func bindModel(c *gin.Context) (*dsl.DomainModel, bool) {
	data, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return nil, false
	}
	m, err := dsl.Unmarshal(data)
	if err != nil {
		var schemaErr *dsl.SchemaValidationError
		if errors.As(err, &schemaErr) {
			abort(c, http.StatusUnprocessableEntity, "schema_invalid", err.Error(), schemaErr.Problems)
			return nil, false
		}
		abort(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return nil, false
	}
	return m, true
}

func (s *Server) validate(c *gin.Context) {
	m, ok := bindModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, validation.ValidateModel(m))
}

func (s *Server) analyze(c *gin.Context) {
	m, ok := bindModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dsl.AnalyzeComplexity(m))
}

func (s *Server) listRuns(c *gin.Context) {
	opts := storage.ListOptions{Status: c.Query("status")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", nil)
			return
		}
		opts.Limit = n
	}

	runs, err := s.runs.List(c.Request.Context(), opts)
	if err != nil {
		s.logger.Error("List runs failed", "error", err)
		abort(c, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	run, err := s.runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			abort(c, http.StatusNotFound, "not_found", "run "+id+" not found", nil)
			return
		}
		s.logger.Error("Get run failed", "run_id", id, "error", err)
		abort(c, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, run)
}
