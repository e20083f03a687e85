package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// mockResolver implements services.SchemaResolver for testing.
type mockResolver struct {
	desc      *models.TableDescriptor
	err       error
	deps      []models.TableDependency
	tables    []models.TableSummary
	summary   models.SchemaSummary
	stats     models.CacheStats
	preload   models.PreloadStatus
	predicate string
	strict    bool
	reloadErr error

	resolvedTable string
	resolveOpts   int
	liveCalls     int
	invalidated   string
	invalidateN   int
	invalidateErr error
	reloads       int
	renderedArgs  [3]string
}

var _ services.SchemaResolver = (*mockResolver)(nil)

func (m *mockResolver) Resolve(ctx context.Context, table string, opts ...services.ResolveOption) (*models.TableDescriptor, error) {
	m.resolvedTable = table
	m.resolveOpts = len(opts)
	return m.desc, m.err
}

func (m *mockResolver) ResolveLive(ctx context.Context, table string, opts ...services.ResolveOption) (*models.TableDescriptor, error) {
	m.liveCalls++
	return m.Resolve(ctx, table, opts...)
}

func (m *mockResolver) Invalidate(pattern string) (int, error) {
	m.invalidated = pattern
	return m.invalidateN, m.invalidateErr
}

func (m *mockResolver) Reload(ctx context.Context) error {
	m.reloads++
	return m.reloadErr
}

func (m *mockResolver) Preload(ctx context.Context) models.PreloadStatus { return m.preload }
func (m *mockResolver) CacheStats() models.CacheStats                    { return m.stats }
func (m *mockResolver) PreloadStatus() models.PreloadStatus              { return m.preload }
func (m *mockResolver) ListTables() []models.TableSummary                { return m.tables }
func (m *mockResolver) Summary() models.SchemaSummary                    { return m.summary }
func (m *mockResolver) StrictMode() bool                                 { return m.strict }

func (m *mockResolver) Dependencies(ctx context.Context, table string) ([]models.TableDependency, error) {
	m.resolvedTable = table
	return m.deps, m.err
}

func (m *mockResolver) RenderTimePattern(name, dialect, column string) (string, error) {
	m.renderedArgs = [3]string{name, dialect, column}
	return m.predicate, m.err
}

func newTestServer(t *testing.T, res *mockResolver) *server.MCPServer {
	t.Helper()
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, &ToolDeps{Resolver: res, Version: "1.2.3", LiveDatabase: true})
	return s
}

// callTool invokes a tool through the JSON-RPC entry point and returns the
// decoded result.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var resp struct {
		Result *struct {
			Content []mcp.TextContent `json:"content"`
			IsError bool              `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	if resp.Error != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.NewTextContent(resp.Error.Message)}}
	}
	require.NotNil(t, resp.Result)

	result := &mcp.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		result.Content = append(result.Content, mcp.NewTextContent(c.Text))
	}
	return result
}

func decodeText(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), v))
}
