package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemacache"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemaconfig"
)

const fixtureWhitelist = `{
  "tables": {
    "ORDERS": {"table_type": "TABLE", "display_name": "Sales Orders"},
    "CUSTOMERS": {"table_type": "TABLE", "display_name": "Customers"},
    "ORDER_SUMMARY": {"table_type": "VIEW", "display_name": "Order Summary"}
  },
  "table_categories": {"sales": ["ORDERS", "ORDER_SUMMARY"]},
  "importance_levels": {
    "critical": ["ORDERS"],
    "high": ["CUSTOMERS"],
    "low": ["ORDER_SUMMARY"]
  }
}`

const fixturePatterns = `{
  "column_patterns": {
    "_ID$": {"semantic_type": "identifier", "default_description": "Identifier"},
    "_DATE$": {"semantic_type": "datetime", "default_description": "Date"}
  },
  "time_patterns": {
    "last_30_days": {
      "mssql": "{date_column} >= DATEADD(day, -30, GETDATE())",
      "postgresql": "{date_column} >= CURRENT_DATE - INTERVAL '30 days'"
    }
  }
}`

const fixtureOrdersDetail = `{
  "table_name": "ORDERS",
  "key_columns": {
    "ORDER_ID": {"semantic_type": "primary_identifier", "description": "Order number"}
  },
  "relationships": {
    "primary_key": "ORDER_ID",
    "foreign_keys": [{"column": "CUSTOMER_ID", "references": "CUSTOMERS.CUSTOMER_ID"}]
  }
}`

func writeFixtureDir(t *testing.T, withOrdersDetail bool) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, schemaconfig.WhitelistFile), []byte(fixtureWhitelist), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, schemaconfig.GlobalPatternsFile), []byte(fixturePatterns), 0o644))
	if withOrdersDetail {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, schemaconfig.TablesDir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, schemaconfig.TablesDir, "ORDERS.json"), []byte(fixtureOrdersDetail), 0o644))
	}
	return dir
}

// fakeIntrospector serves canned live schemas and records every call.
type fakeIntrospector struct {
	mu      sync.Mutex
	tables  map[string][]models.LiveColumn
	errs    map[string]error
	delay   time.Duration
	fetches map[string]int
	exists  map[string]int
	// onFetch runs inside FetchLiveSchema after the call is recorded.
	onFetch func(table string)
}

func newFakeIntrospector() *fakeIntrospector {
	return &fakeIntrospector{
		tables: map[string][]models.LiveColumn{
			"ORDERS": {
				{Name: "ORDER_ID", DataType: "integer", IsPrimaryKey: true},
				{Name: "CUSTOMER_ID", DataType: "integer", ReferencedTable: "CUSTOMERS", ReferencedColumn: "CUSTOMER_ID"},
				{Name: "ORDER_DATE", DataType: "date"},
			},
			"CUSTOMERS": {
				{Name: "CUSTOMER_ID", DataType: "integer", IsPrimaryKey: true},
				{Name: "CUSTOMER_NAME", DataType: "text", Comment: "Legal name"},
			},
			"SECRET_TABLE": {
				{Name: "SECRET_ID", DataType: "integer", IsPrimaryKey: true},
				{Name: "PAYLOAD", DataType: "text", IsNullable: true},
			},
			"SECRET_TABLES": {
				{Name: "ID", DataType: "integer", IsPrimaryKey: true},
			},
		},
		errs:    map[string]error{},
		fetches: map[string]int{},
		exists:  map[string]int{},
	}
}

func (f *fakeIntrospector) TestConnection(context.Context) error { return nil }
func (f *fakeIntrospector) Close() error                         { return nil }
func (f *fakeIntrospector) Dialect() models.Dialect              { return models.DialectPostgreSQL }

func (f *fakeIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	key := models.NormalizeTableName(table)
	f.mu.Lock()
	f.exists[key]++
	err := f.errs[key]
	_, ok := f.tables[key]
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (f *fakeIntrospector) FetchLiveSchema(ctx context.Context, table string) ([]models.LiveColumn, error) {
	key := models.NormalizeTableName(table)
	f.mu.Lock()
	f.fetches[key]++
	cols, ok := f.tables[key]
	err := f.errs[key]
	delay := f.delay
	onFetch := f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(key)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, datasource.ErrTableNotFound
	}
	return append([]models.LiveColumn(nil), cols...), nil
}

func (f *fakeIntrospector) fetchCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[table]
}

func (f *fakeIntrospector) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

type resolverFixture struct {
	dir   string
	store *schemaconfig.Store
	cache *schemacache.Cache
	intro *fakeIntrospector
	res   SchemaResolver
	clock *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixtureOption func(*fixtureSettings)

type fixtureSettings struct {
	cfg            ResolverConfig
	maxSize        int
	detail         bool
	noIntrospector bool
}

func withConfig(fn func(*ResolverConfig)) fixtureOption {
	return func(s *fixtureSettings) { fn(&s.cfg) }
}

func withCacheSize(n int) fixtureOption {
	return func(s *fixtureSettings) { s.maxSize = n }
}

func withoutOrdersDetail() fixtureOption {
	return func(s *fixtureSettings) { s.detail = false }
}

func withoutIntrospector() fixtureOption {
	return func(s *fixtureSettings) { s.noIntrospector = true }
}

func newResolverFixture(t *testing.T, opts ...fixtureOption) *resolverFixture {
	t.Helper()

	settings := fixtureSettings{
		cfg:     DefaultResolverConfig(),
		maxSize: 100,
		detail:  true,
	}
	settings.cfg.LiveRatePerSecond = 0
	settings.cfg.ValidateWhitelist = false
	settings.cfg.PreloadOnStartup = false
	for _, opt := range opts {
		opt(&settings)
	}

	dir := writeFixtureDir(t, settings.detail)
	store, err := schemaconfig.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	cache := schemacache.New(settings.maxSize, time.Hour, zap.NewNop(), schemacache.WithClock(clock.Now))

	intro := newFakeIntrospector()
	var introspector datasource.Introspector = intro
	if settings.noIntrospector {
		introspector = nil
	}

	return &resolverFixture{
		dir:   dir,
		store: store,
		cache: cache,
		intro: intro,
		res:   NewResolver(store, cache, introspector, settings.cfg, zap.NewNop()),
		clock: clock,
	}
}
