package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model" binding:"required"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// capturedRequest is a served request kept for /requests.
type capturedRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per model
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string
	logger   *slog.Logger
	r        *gin.Engine

	mu       sync.Mutex
	total    int64
	calls    map[string]int
	requests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())

	s := &server{
		fixtures: fixtures,
		logger:   logger,
		r:        r,
		calls:    make(map[string]int),
		requests: make(map[string][]capturedRequest),
	}
	s.routes()
	return s
}

func (s *server) routes() {
	s.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.r.POST("/v1/chat/completions", s.handleChatCompletions)
	s.r.GET("/v1/models", s.handleModels)
	s.r.GET("/stats", s.handleStats)
	s.r.GET("/requests", s.handleRequests)
}

// resolve finds the fixture sequence for a model, trying the exact name and
// then the name without a "mock-" prefix.
func (s *server) resolve(model string) ([]string, bool) {
	if seq, ok := s.fixtures[model]; ok {
		return seq, true
	}
	seq, ok := s.fixtures[strings.TrimPrefix(model, "mock-")]
	return seq, ok
}

// next records the call and returns its 0-based per-model index.
func (s *server) next(req chatRequest) (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	idx := s.calls[req.Model]
	s.calls[req.Model] = idx + 1
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: idx + 1,
		Timestamp: time.Now().UnixMilli(),
	})
	return idx, s.total
}

func (s *server) handleChatCompletions(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid request body: " + err.Error()}})
		return
	}

	seq, ok := s.resolve(req.Model)
	if !ok {
		s.logger.Warn("No fixture for model", "model", req.Model)
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": fmt.Sprintf("no fixture for model %q", req.Model)}})
		return
	}

	idx, callNum := s.next(req)
	content := seq[min(idx, len(seq)-1)]

	s.logger.Info("Serving fixture",
		"call", callNum,
		"model", req.Model,
		"call_index", idx+1,
		"fixtures", len(seq),
		"messages", len(req.Messages))

	prompt := 0
	for _, m := range req.Messages {
		prompt += len(m.Content) / 4
	}
	completion := len(content) / 4

	c.JSON(http.StatusOK, chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	})
}

func (s *server) handleModels(c *gin.Context) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make([]modelEntry, 0, len(names))
	for _, name := range names {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": models})
}

func (s *server) handleStats(c *gin.Context) {
	s.mu.Lock()
	byModel := make(map[string]int, len(s.calls))
	for model, n := range s.calls {
		byModel[model] = n
	}
	total := s.total
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"total_calls": total, "calls_by_model": byModel})
}

// handleRequests returns captured requests, optionally filtered by the
// model and call (1-indexed) query parameters.
func (s *server) handleRequests(c *gin.Context) {
	modelFilter := c.Query("model")
	callFilter := 0
	if v := c.Query("call"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "call must be a positive integer"}})
			return
		}
		callFilter = n
	}

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.requests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, r := range reqs {
			if callFilter == 0 || r.CallIndex == callFilter {
				result[model] = append(result[model], r)
			}
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"requests_by_model": result})
}
