package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	Datasources []string `json:"datasources"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and configured datasource names.
func RegisterHealthTool(s *server.MCPServer, version string, datasources func() []string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and the datasources tables can be read from"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names := []string{}
		if datasources != nil {
			names = append(names, datasources()...)
		}
		result, err := json.Marshal(healthResult{Status: "ok", Version: version, Datasources: names})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
