package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// maxTTLMinutes caps per-request cache TTL overrides at one day.
const maxTTLMinutes = 24 * 60

// RegisterSchemaTools registers the table lookup and catalog tools.
func RegisterSchemaTools(s *server.MCPServer, deps *ToolDeps) {
	registerGetTableSchemaTool(s, deps)
	registerListTablesTool(s, deps)
	registerGetTableDependenciesTool(s, deps)
	registerGetSchemaSummaryTool(s, deps)
}

func registerGetTableSchemaTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_table_schema",
		mcp.WithDescription(
			"Get the semantic schema of a table: display name, columns with semantic types and descriptions, "+
				"relationships and business logic. Whitelisted tables come from curated configuration; "+
				"other tables are introspected from the live database unless strict mode is on.",
		),
		mcp.WithString(
			"table_name",
			mcp.Required(),
			mcp.Description("Table name, optionally schema-qualified (case-insensitive)"),
		),
		mcp.WithNumber(
			"ttl_minutes",
			mcp.Description("Override the cache TTL for this result, in minutes"),
		),
		mcp.WithBoolean(
			"live",
			mcp.Description("If true, skip the cache and read the table from the live database (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table_name' cannot be empty"), nil
		}

		var opts []services.ResolveOption
		if ttl, ok := getOptionalFloat(req, "ttl_minutes"); ok {
			if ttl <= 0 || ttl > maxTTLMinutes {
				return NewErrorResultWithDetails("invalid_parameters",
					"parameter 'ttl_minutes' must be between 0 and 1440",
					map[string]any{"ttl_minutes": ttl}), nil
			}
			opts = append(opts, services.WithTTL(time.Duration(ttl*float64(time.Minute))))
		}

		live, _ := getOptionalBool(req, "live")
		var desc *models.TableDescriptor
		if live {
			desc, err = deps.Resolver.ResolveLive(ctx, table, opts...)
		} else {
			desc, err = deps.Resolver.Resolve(ctx, table, opts...)
		}
		if err != nil {
			return resolveFailure(deps.Logger, "get_table_schema", table, err)
		}
		return jsonResult(desc)
	})
}

func registerListTablesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription("List whitelisted tables with display name, category, importance and whether a detail file documents them"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables := deps.Resolver.ListTables()
		return jsonResult(struct {
			Tables []models.TableSummary `json:"tables"`
			Count  int                   `json:"count"`
		}{Tables: tables, Count: len(tables)})
	})
}

func registerGetTableDependenciesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_table_dependencies",
		mcp.WithDescription("List the foreign keys from a table to the tables it references"),
		mcp.WithString(
			"table_name",
			mcp.Required(),
			mcp.Description("Table name, optionally schema-qualified (case-insensitive)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil || trimString(table) == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table_name' is required"), nil
		}
		table = trimString(table)

		fks, err := deps.Resolver.Dependencies(ctx, table)
		if err != nil {
			return resolveFailure(deps.Logger, "get_table_dependencies", table, err)
		}
		return jsonResult(struct {
			TableName    string                   `json:"table_name"`
			Dependencies []models.TableDependency `json:"dependencies"`
		}{TableName: models.NormalizeTableName(table), Dependencies: fks})
	})
}

func registerGetSchemaSummaryTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_schema_summary",
		mcp.WithDescription("Summarize the loaded schema configuration: table and pattern counts, strict mode and cache statistics"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Resolver.Summary())
	})
}

// resolveFailure converts a resolver error into a tool error result, or a Go
// error when the caller cannot act on it.
func resolveFailure(logger *zap.Logger, tool, table string, err error) (*mcp.CallToolResult, error) {
	if IsInputError(err) {
		logger.Debug("Tool input error",
			zap.String("tool", tool),
			zap.String("table", table),
			logging.ErrorField(err))
	} else {
		logger.Error("Tool failed",
			zap.String("tool", tool),
			zap.String("table", table),
			logging.ErrorField(err))
	}
	if result := ResolveErrorResult(err); result != nil {
		return result, nil
	}
	return nil, fmt.Errorf("%s failed: %s", tool, logging.SanitizeError(err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
