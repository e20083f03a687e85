package handlers

import (
	"context"
	"errors"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// mockResolver implements services.SchemaResolver for testing.
type mockResolver struct {
	desc      *models.TableDescriptor
	err       error
	preload   models.PreloadStatus
	tables    []models.TableSummary
	strict    bool
	reloadErr error

	lastTable  string
	lastOpts   int
	liveCalls  int
	invalidate string
}

var _ services.SchemaResolver = (*mockResolver)(nil)

func (m *mockResolver) Resolve(ctx context.Context, table string, opts ...services.ResolveOption) (*models.TableDescriptor, error) {
	m.lastTable, m.lastOpts = table, len(opts)
	return m.desc, m.err
}

func (m *mockResolver) ResolveLive(ctx context.Context, table string, opts ...services.ResolveOption) (*models.TableDescriptor, error) {
	m.liveCalls++
	return m.Resolve(ctx, table, opts...)
}

func (m *mockResolver) Invalidate(pattern string) (int, error) {
	m.invalidate = pattern
	if pattern == "[" {
		return 0, errors.New("invalid pattern")
	}
	return 3, nil
}

func (m *mockResolver) Reload(context.Context) error                      { return m.reloadErr }
func (m *mockResolver) Preload(ctx context.Context) models.PreloadStatus { return m.preload }
func (m *mockResolver) CacheStats() models.CacheStats                    { return models.CacheStats{Enabled: true} }
func (m *mockResolver) PreloadStatus() models.PreloadStatus              { return m.preload }
func (m *mockResolver) ListTables() []models.TableSummary                { return m.tables }
func (m *mockResolver) StrictMode() bool                                 { return m.strict }

func (m *mockResolver) Summary() models.SchemaSummary {
	return models.SchemaSummary{TotalTables: len(m.tables), StrictMode: m.strict}
}

func (m *mockResolver) Dependencies(ctx context.Context, table string) ([]models.TableDependency, error) {
	m.lastTable = table
	return []models.TableDependency{}, m.err
}

func (m *mockResolver) RenderTimePattern(name, dialect, column string) (string, error) {
	return "", m.err
}

// mockIntrospector implements datasource.Introspector for health checks.
type mockIntrospector struct {
	pingErr error
}

var _ datasource.Introspector = (*mockIntrospector)(nil)

func (m *mockIntrospector) TestConnection(ctx context.Context) error { return m.pingErr }
func (m *mockIntrospector) Close() error                             { return nil }
func (m *mockIntrospector) Dialect() models.Dialect                  { return models.DialectMSSQL }

func (m *mockIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	return true, nil
}

func (m *mockIntrospector) FetchLiveSchema(ctx context.Context, table string) ([]models.LiveColumn, error) {
	return nil, nil
}
