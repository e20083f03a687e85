package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// ToolDeps contains dependencies shared by the schema tools.
type ToolDeps struct {
	Resolver services.SchemaResolver
	Version  string
	// LiveDatabase reports whether a live database is configured.
	LiveDatabase bool
	Logger       *zap.Logger
}

// RegisterAll registers every schema engine tool on s.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	RegisterHealthTool(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterTimePatternTool(s, deps)
	RegisterCacheTools(s, deps)
}

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalFloat extracts an optional numeric argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false, false
	}
	val, ok := args[key].(bool)
	return val, ok
}
