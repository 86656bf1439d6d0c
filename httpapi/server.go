// Package httpapi serves modeling runs, model checks and run history over
// HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c360studio/semmodel/storage"
	"github.com/c360studio/semmodel/workflow"
)

// Runner executes a modeling run. *workflow.Controller satisfies it.
type Runner interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.Result, error)
}

// RunReader reads run history. *storage.RunStore satisfies it.
type RunReader interface {
	List(ctx context.Context, opts storage.ListOptions) ([]storage.RunSummary, error)
	Get(ctx context.Context, id string) (*storage.Run, error)
}

// Deps are the collaborators of a Server. Runs and Metrics are optional;
// their routes are not registered when nil.
type Deps struct {
	Runner  Runner
	Runs    RunReader
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	addr    string
	r       *gin.Engine
	runner  Runner
	runs    RunReader
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer builds the router. addr defaults to ":8080".
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = ":8080"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		addr:    addr,
		r:       r,
		runner:  deps.Runner,
		runs:    deps.Runs,
		metrics: deps.Metrics,
		logger:  logger,
	}
	r.Use(s.requestLogger())
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP API stopped")
	return nil
}

func (s *Server) routes() {
	s.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.r.Group("/api/v1")
	v1.POST("/generate", s.generate)
	v1.POST("/validate", s.validate)
	v1.POST("/analyze", s.analyze)
	if s.runs != nil {
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
