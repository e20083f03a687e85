package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
)

// RegisterCacheTools registers cache inspection and maintenance tools.
func RegisterCacheTools(s *server.MCPServer, deps *ToolDeps) {
	s.AddTool(mcp.NewTool(
		"cache_stats",
		mcp.WithDescription("Report schema cache size, hit rate, evictions and expirations"),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Resolver.CacheStats())
	})

	s.AddTool(mcp.NewTool(
		"cache_invalidate",
		mcp.WithDescription("Drop cached table schemas matching a table name, a glob such as ORDER*, or * for all"),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Table name, glob, or *")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pattern, err := req.RequireString("table_name")
		if err != nil || trimString(pattern) == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table_name' is required"), nil
		}
		n, err := deps.Resolver.Invalidate(trimString(pattern))
		if err != nil {
			return NewErrorResult("invalid_pattern", err.Error()), nil
		}
		return jsonResult(struct {
			Pattern     string `json:"pattern"`
			Invalidated int    `json:"invalidated"`
		}{Pattern: trimString(pattern), Invalidated: n})
	})

	s.AddTool(mcp.NewTool(
		"schema_reload",
		mcp.WithDescription("Re-read the schema configuration directory, clear the cache and preload again. The previous configuration stays active if the new one fails to load."),
		mcp.WithDestructiveHintAnnotation(false),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Resolver.Reload(ctx); err != nil {
			deps.Logger.Warn("Schema reload failed", logging.ErrorField(err))
			if result := ResolveErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("schema reload failed: %s", logging.SanitizeError(err))
		}
		summary := deps.Resolver.Summary()
		preload := deps.Resolver.PreloadStatus()
		preloaded := len(preload.StaticTables) + len(preload.DynamicTables)
		deps.Logger.Info("Schema configuration reloaded via tool",
			zap.Int("tables", summary.TotalTables),
			zap.Int("preloaded", preloaded))
		return jsonResult(struct {
			Reloaded  bool `json:"reloaded"`
			Tables    int  `json:"tables"`
			Preloaded int  `json:"preloaded"`
		}{Reloaded: true, Tables: summary.TotalTables, Preloaded: preloaded})
	})

	s.AddTool(mcp.NewTool(
		"preload_status",
		mcp.WithDescription("Report the most recent schema preload run: completed passes, loaded, failed and missing tables"),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Resolver.PreloadStatus())
	})
}
