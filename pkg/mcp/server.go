// Package mcp exposes the join engine as MCP tools over streamable HTTP.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "ekaya-joins"

// Deps contains everything the registered tools need.
type Deps struct {
	Joins       services.JoinService
	Tables      services.TableSource // nil when no datasources are configured
	Datasources func() []string
	PreviewRows int
}

// Server wraps the mcp-go MCPServer with the join tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with the health, inspect_join_keys and
// join_datasets tools.
func NewServer(version string, deps Deps, logger *zap.Logger) *Server {
	logger = logger.Named("mcp")
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)

	tools.RegisterHealthTool(mcpServer, version, deps.Datasources)
	tools.RegisterJoinTools(mcpServer, &tools.JoinToolDeps{
		Joins:       deps.Joins,
		Tables:      deps.Tables,
		PreviewRows: deps.PreviewRows,
		Logger:      logger,
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

// RegisterTool registers an additional tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// Handler returns a stateless streamable HTTP transport for this server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
