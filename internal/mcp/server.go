// Package mcp exposes the memory service over the Model Context
// Protocol: nine batch tools, two resources, and four prompt templates
// on a stdio transport.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/memory"
	"github.com/memmcp/memmcp/internal/search"
	filesync "github.com/memmcp/memmcp/internal/sync"
	"github.com/memmcp/memmcp/pkg/version"
)

// ServerName is the implementation name advertised to MCP clients.
const ServerName = "agent-memory"

// Server bridges MCP clients with the memory manager and the search
// engine. All state mutation goes through the manager; the server only
// validates, dispatches, and marshals.
type Server struct {
	mcp     *mcp.Server
	manager *memory.Manager
	engine  search.SearchEngine
	syncer  filesync.Syncer
	logger  *slog.Logger
}

// NewServer wires the MCP surface. engine may be search.Unavailable{}
// and syncer filesync.Noop{} in file-only mode.
func NewServer(manager *memory.Manager, engine search.SearchEngine, syncer filesync.Syncer) (*Server, error) {
	if manager == nil {
		return nil, errors.New(errors.KindInvalidArgument, "memory manager is required")
	}
	if engine == nil {
		engine = search.Unavailable{}
	}
	if syncer == nil {
		syncer = filesync.Noop{}
	}

	s := &Server{
		manager: manager,
		engine:  engine,
		syncer:  syncer,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s, nil
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server on stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server",
		slog.String("name", ServerName),
		slog.String("version", version.Version),
		slog.Bool("indexed", s.syncer.Enabled()))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// logCall emits the start log for a tool invocation and returns the
// completion callback. Every handler runs through this for request-ID
// correlated timing.
func (s *Server) logCall(name string, attrs ...slog.Attr) func(itemCount int) {
	start := time.Now()
	requestID := generateRequestID()

	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("request_id", requestID))
	for _, a := range attrs {
		args = append(args, a)
	}
	s.logger.Info(name+" started", args...)

	return func(itemCount int) {
		s.logger.Info(name+" completed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.Int("items", itemCount))
	}
}

// generateRequestID creates a unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()
}
