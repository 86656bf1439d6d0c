// Package main implements a mock LLM server for offline runs and wiring
// tests. It serves OpenAI-compatible /v1/chat/completions responses from
// fixture files, routing by the "model" field of the request.
//
// Usage:
//
//	mock-llm --fixtures ./cmd/mock-llm/testdata/library --addr :11434
//
// Fixture files are named by model ("mock-analyst.txt" answers model
// "mock-analyst") and their content is returned as the assistant message.
// JSON, text and markdown fixtures are supported.
//
// Sequential fixtures: numbered files ("mock-validator.1.json",
// "mock-validator.2.json") answer the Nth call to that model. After they run
// out the base file is repeated, which scripts validation and improvement
// loops.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir string
		addr       string
	)

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "OpenAI-compatible fixture server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			if fixtureDir == "" {
				fixtureDir = "/fixtures"
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			fixtures, err := loadFixtures(fixtureDir)
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}
			for model, seq := range fixtures {
				logger.Info("Loaded fixtures", "model", model, "count", len(seq))
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			gin.SetMode(gin.ReleaseMode)
			return serve(ctx, addr, newServer(fixtures, logger).r, logger)
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory containing fixture files (default $MOCK_LLM_FIXTURES or /fixtures)")
	cmd.Flags().StringVar(&addr, "addr", ":11434", "Listen address")
	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Mock LLM server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
