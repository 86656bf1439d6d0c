// Package mcpserver exposes model generation and checks as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/c360studio/semmodel/workflow"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Runner executes a modeling run. *workflow.Controller satisfies it.
type Runner interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.Result, error)
}

// Server is the MCP server.
type Server struct {
	runner Runner
	logger *slog.Logger
	server *mcp.Server
}

// NewServer creates a server with every tool registered.
func NewServer(runner Runner, logger *slog.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("mcp server: runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "semmodel",
		Version: Version,
	}

	s := &Server{
		runner: runner,
		logger: logger,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
