package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status                  string `json:"status"`
	Version                 string `json:"version"`
	StrictMode              bool   `json:"strict_mode"`
	CacheEnabled            bool   `json:"cache_enabled"`
	LiveDatabase            bool   `json:"live_database"`
	StaticPreloadCompleted  bool   `json:"static_preload_completed"`
	DynamicPreloadCompleted bool   `json:"dynamic_preload_completed"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// Status is "degraded" while a preload run has recorded failures.
func RegisterHealthTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and preload completion"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		preload := deps.Resolver.PreloadStatus()
		status := "ok"
		if len(preload.FailedTables) > 0 {
			status = "degraded"
		}

		result, err := json.Marshal(healthResult{
			Status:                  status,
			Version:                 deps.Version,
			StrictMode:              deps.Resolver.StrictMode(),
			CacheEnabled:            deps.Resolver.CacheStats().Enabled,
			LiveDatabase:            deps.LiveDatabase,
			StaticPreloadCompleted:  preload.StaticPreloadCompleted,
			DynamicPreloadCompleted: preload.DynamicPreloadCompleted,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
