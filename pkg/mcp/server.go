package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "ekaya-schema-engine"

// Server wraps the mcp-go MCPServer with the schema engine tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server exposing the resolver's operations as tools.
func NewServer(version string, resolver services.SchemaResolver, liveDatabase bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	tools.RegisterAll(mcpServer, &tools.ToolDeps{
		Resolver:     resolver,
		Version:      version,
		LiveDatabase: liveDatabase,
		Logger:       logger.Named("mcp-tools"),
	})

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
