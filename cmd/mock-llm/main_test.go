package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/llm"
	_ "github.com/c360studio/semmodel/llm/providers"
	"github.com/c360studio/semmodel/model"
	"github.com/c360studio/semmodel/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func chat(t *testing.T, s *server, model string) (int, string) {
	t.Helper()
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: "model the library"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		return w.Code, ""
	}

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, model, resp.Model)
	return w.Code, resp.Choices[0].Message.Content
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-validator.2.json", `{"status":"pass"}`)
	writeFixture(t, dir, "mock-validator.1.json", `{"status":"needs_improvement"}`)
	writeFixture(t, dir, "mock-validator.json", `{"status":"pass","feedback":"fallback"}`)
	writeFixture(t, dir, "mock-analyst.txt", "Two actors.\n")
	writeFixture(t, dir, "mock-class.md", "```json\n{\"classes\": []}\n```\n")
	writeFixture(t, dir, "README", "ignored")

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	assert.Equal(t, []string{
		`{"status":"needs_improvement"}`,
		`{"status":"pass"}`,
		`{"status":"pass","feedback":"fallback"}`,
	}, fixtures["mock-validator"])
	assert.Equal(t, []string{"Two actors."}, fixtures["mock-analyst"])
	assert.Equal(t, []string{"```json\n{\"classes\": []}\n```"}, fixtures["mock-class"])
}

func TestLoadFixtures_Errors(t *testing.T) {
	t.Run("empty dir", func(t *testing.T) {
		_, err := loadFixtures(t.TempDir())
		assert.ErrorContains(t, err, "no fixture files")
	})
	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "mock-usecase.json", `{"name": `)
		_, err := loadFixtures(dir)
		assert.ErrorContains(t, err, "invalid JSON")
	})
	t.Run("duplicate base", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "mock-analyst.txt", "a")
		writeFixture(t, dir, "mock-analyst.md", "b")
		_, err := loadFixtures(dir)
		assert.ErrorContains(t, err, "duplicate")
	})
	t.Run("missing dir", func(t *testing.T) {
		_, err := loadFixtures(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func TestLoadFixtures_Testdata(t *testing.T) {
	fixtures, err := loadFixtures(filepath.Join("testdata", "library"))
	require.NoError(t, err)
	assert.Len(t, fixtures, 7)
	assert.Len(t, fixtures["mock-validator"], 2)
}

func TestChatCompletions_Sequential(t *testing.T) {
	s := newServer(map[string][]string{
		"mock-validator": {"first", "second"},
		"analyst":        {"prose"},
	}, quietLogger())

	for _, want := range []string{"first", "second", "second", "second"} {
		code, content := chat(t, s, "mock-validator")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, want, content)
	}

	code, content := chat(t, s, "mock-analyst")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "prose", content, "mock- prefix is stripped as a fallback")

	code, _ = chat(t, s, "gpt-4o")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestChatCompletions_BadRequest(t *testing.T) {
	s := newServer(map[string][]string{"m": {"x"}}, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(`{"messages": []}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndRequests(t *testing.T) {
	s := newServer(map[string][]string{"mock-a": {"1"}, "mock-b": {"2"}}, quietLogger())
	chat(t, s, "mock-a")
	chat(t, s, "mock-a")
	chat(t, s, "mock-b")

	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Total   int64          `json:"total_calls"`
		ByModel map[string]int `json:"calls_by_model"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, map[string]int{"mock-a": 2, "mock-b": 1}, stats.ByModel)

	w = httptest.NewRecorder()
	s.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests?model=mock-a&call=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var captured struct {
		ByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &captured))
	require.Len(t, captured.ByModel, 1)
	require.Len(t, captured.ByModel["mock-a"], 1)
	assert.Equal(t, 2, captured.ByModel["mock-a"][0].CallIndex)
	assert.Equal(t, "model the library", captured.ByModel["mock-a"][0].Messages[0].Content)

	w = httptest.NewRecorder()
	s.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests?call=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"mock-a"`)
}

// TestWorkflowAgainstFixtures drives a full modeling run through the real
// LLM client and OpenAI provider against the testdata fixtures.
func TestWorkflowAgainstFixtures(t *testing.T) {
	fixtures, err := loadFixtures(filepath.Join("testdata", "library"))
	require.NoError(t, err)
	s := newServer(fixtures, quietLogger())
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	models := map[agent.Role]string{
		agent.RoleAnalyst:          "mock-analyst",
		agent.RoleUseCaseModeler:   "mock-usecase",
		agent.RoleClassDesigner:    "mock-class",
		agent.RoleSequenceDesigner: "mock-sequence",
		agent.RoleConstraintExpert: "mock-ocl",
		agent.RoleValidator:        "mock-validator",
		agent.RoleCoordinator:      "mock-coordinator",
	}
	reg := model.NewDefaultRegistry()
	for _, name := range models {
		reg.SetEndpoint(name, &model.EndpointConfig{Provider: "openai", URL: srv.URL + "/v1", Model: name})
	}

	var records []*llm.CallRecord
	client := llm.NewClient(reg,
		llm.WithRetryConfig(llm.RetryConfig{MaxAttempts: 1}),
		llm.WithLogger(quietLogger()),
		llm.WithCallRecorder(llm.CallRecorderFunc(func(_ context.Context, rec *llm.CallRecord) error {
			records = append(records, rec)
			return nil
		})),
	)
	ctrl := workflow.NewController(llm.NewInvoker(client), workflow.Config{Models: models, IntegrityGate: true},
		workflow.WithLogger(quietLogger()))

	res, err := ctrl.Run(context.Background(), workflow.Request{
		Requirements: "Members borrow and return books. A loan lasts at most 14 days.",
		Source:       "requirements.md",
	})
	require.NoError(t, err)

	assert.Equal(t, workflow.AcceptedClean, res.Termination)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, res.ValidateCalls)
	assert.Equal(t, 1, res.ImproveCalls)
	assert.Equal(t, "Library", res.Model.Name)
	assert.Equal(t, []string{"Book", "Loan", "Fine"}, res.Model.ClassDiagram.ClassNames())
	assert.Len(t, res.Model.SequenceDiagrams, 2)
	assert.Len(t, res.Model.Constraints, 1)

	// analyst, usecase, class, 2 sequences, ocl, 2 validations, 1 improvement
	assert.Len(t, records, 9)
	for _, rec := range records {
		assert.True(t, rec.Succeeded(), rec.Error)
		assert.NotEmpty(t, rec.RunID)
	}
}
