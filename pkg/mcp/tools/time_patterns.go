package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTimePatternTool registers get_time_pattern.
func RegisterTimePatternTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_time_pattern",
		mcp.WithDescription(
			"Render a named time filter (for example last_30_days) as a SQL predicate on a date column. "+
				"Uses the live database's dialect when dialect is omitted.",
		),
		mcp.WithString("name", mcp.Required(), mcp.Description("Time pattern name")),
		mcp.WithString("column", mcp.Required(), mcp.Description("Date column reference, optionally qualified (o.ORDER_DATE)")),
		mcp.WithString("dialect", mcp.Description("SQL dialect: mssql or postgresql")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		column, err := req.RequireString("column")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		dialect := trimString(getOptionalString(req, "dialect"))

		predicate, err := deps.Resolver.RenderTimePattern(trimString(name), dialect, trimString(column))
		if err != nil {
			if result := ResolveErrorResult(err); result != nil {
				return result, nil
			}
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		return jsonResult(struct {
			Name      string `json:"name"`
			Dialect   string `json:"dialect,omitempty"`
			Predicate string `json:"predicate"`
		}{Name: trimString(name), Dialect: dialect, Predicate: predicate})
	})
}
