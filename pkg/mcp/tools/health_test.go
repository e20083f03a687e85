package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

func TestRegisterAll_ListsTools(t *testing.T) {
	s := newTestServer(t, &mockResolver{})

	result := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resultBytes, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	got := make(map[string]bool)
	for _, tool := range response.Result.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{
		"health", "get_table_schema", "list_tables", "get_table_dependencies", "get_schema_summary",
		"get_time_pattern", "cache_stats", "cache_invalidate", "schema_reload", "preload_status",
	} {
		if !got[name] {
			t.Errorf("tool %q not found in tools/list response", name)
		}
	}
}

func TestHealthTool_Execute(t *testing.T) {
	res := &mockResolver{
		strict:  true,
		stats:   models.CacheStats{Enabled: true},
		preload: models.PreloadStatus{StaticPreloadCompleted: true},
	}
	s := newTestServer(t, res)

	var health healthResult
	decodeText(t, callTool(t, s, "health", nil), &health)

	if health.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", health.Status)
	}
	if health.Version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got '%s'", health.Version)
	}
	if !health.StrictMode || !health.CacheEnabled || !health.LiveDatabase {
		t.Errorf("unexpected flags: %+v", health)
	}
	if !health.StaticPreloadCompleted || health.DynamicPreloadCompleted {
		t.Errorf("unexpected preload flags: %+v", health)
	}
}

func TestHealthTool_DegradedAfterPreloadFailures(t *testing.T) {
	res := &mockResolver{preload: models.PreloadStatus{FailedTables: map[string]string{"ORDERS": "boom"}}}
	s := newTestServer(t, res)

	var health healthResult
	decodeText(t, callTool(t, s, "health", nil), &health)
	if health.Status != "degraded" {
		t.Errorf("expected status 'degraded', got '%s'", health.Status)
	}
}

func TestHealthTool_VersionWithSpecialChars(t *testing.T) {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	versionWithQuotes := `1.0.0-beta"test`
	RegisterHealthTool(s, &ToolDeps{Resolver: &mockResolver{}, Version: versionWithQuotes})

	var health healthResult
	decodeText(t, callTool(t, s, "health", nil), &health)
	if health.Version != versionWithQuotes {
		t.Errorf("expected version %q, got %q", versionWithQuotes, health.Version)
	}
}
