package main

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/c360studio/semmodel/httpapi"
	"github.com/c360studio/semmodel/mcpserver"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve exposes generation, model checks and run history over HTTP:

  POST /api/v1/generate   run the workflow on a requirements text
  POST /api/v1/validate   check a model
  POST /api/v1/analyze    model complexity
  GET  /api/v1/runs       run history
  GET  /api/v1/runs/:id   one run with its stages and model
  GET  /health
  GET  /metrics           when server.metrics is enabled`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, appOptions{controller: true, metrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			gin.SetMode(gin.ReleaseMode)

			deps := httpapi.Deps{
				Runner: a.controller,
				Runs:   a.store,
				Logger: a.logger,
			}
			if a.metrics != nil {
				deps.Metrics = a.metrics.Handler()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return httpapi.NewServer(addr, deps).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Mcp runs a Model Context Protocol server on stdin/stdout with the tools
generate_model, validate_model and analyze_model.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, appOptions{controller: true})
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcpserver.NewServer(a.controller, a.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			a.logger.Info("MCP server ready", "transport", "stdio")
			return srv.Run(ctx)
		},
	}
}
