package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/patterns"
)

func TestDependencies(t *testing.T) {
	f := newResolverFixture(t, withConfig(nonStrict))
	ctx := context.Background()

	deps, err := f.res.Dependencies(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []models.TableDependency{{
		ConstraintName:   "FK_ORDERS_CUSTOMER_ID",
		ParentTable:      "ORDERS",
		ParentColumn:     "CUSTOMER_ID",
		ReferencedTable:  "CUSTOMERS",
		ReferencedColumn: "CUSTOMER_ID",
	}}, deps)

	deps, err = f.res.Dependencies(ctx, "CUSTOMERS")
	require.NoError(t, err)
	assert.NotNil(t, deps)
	assert.Empty(t, deps)

	_, err = f.res.Dependencies(ctx, "NO_SUCH_TABLE")
	assert.ErrorIs(t, err, apperrors.ErrSchemaNotFound)
}

func TestDependencies_StrictMode(t *testing.T) {
	f := newResolverFixture(t)

	_, err := f.res.Dependencies(context.Background(), "SECRET_TABLE")
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestListTables(t *testing.T) {
	f := newResolverFixture(t)

	tables := f.res.ListTables()
	require.Len(t, tables, 3)
	assert.Equal(t, "CUSTOMERS", tables[0].TableName)
	assert.Equal(t, models.TableSummary{
		TableName:   "ORDERS",
		Kind:        models.TableKindTable,
		DisplayName: "Sales Orders",
		Category:    "sales",
		Importance:  models.ImportanceCritical,
		Documented:  true,
	}, tables[1])
	assert.Equal(t, models.TableKindView, tables[2].Kind)
	assert.False(t, tables[2].Documented)
}

func TestSummary(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.res.Resolve(context.Background(), "ORDERS")
	require.NoError(t, err)

	s := f.res.Summary()
	assert.Equal(t, 3, s.TotalTables)
	assert.Equal(t, 1, s.DocumentedTables)
	assert.Equal(t, 1, s.TotalKeyColumns)
	assert.Equal(t, 2, s.ColumnPatterns)
	assert.Equal(t, 1, s.TimePatterns)
	assert.True(t, s.StrictMode)
	assert.Equal(t, 1, s.Cache.Size)
	assert.False(t, s.LoadedAt.IsZero())
}

func TestRenderTimePattern(t *testing.T) {
	f := newResolverFixture(t)

	got, err := f.res.RenderTimePattern("last_30_days", "", "o.ORDER_DATE")
	require.NoError(t, err)
	assert.Equal(t, "o.ORDER_DATE >= CURRENT_DATE - INTERVAL '30 days'", got)

	got, err = f.res.RenderTimePattern("last_30_days", "sqlserver", "ORDER_DATE")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_DATE >= DATEADD(day, -30, GETDATE())", got)

	_, err = f.res.RenderTimePattern("last_year", "mssql", "ORDER_DATE")
	assert.ErrorIs(t, err, patterns.ErrUnknownTimePattern)

	_, err = f.res.RenderTimePattern("last_30_days", "oracle", "ORDER_DATE")
	assert.Error(t, err)

	_, err = f.res.RenderTimePattern("last_30_days", "mssql", "ORDER_DATE; DROP TABLE ORDERS")
	assert.ErrorIs(t, err, patterns.ErrInvalidColumn)
}

func TestRenderTimePattern_NoIntrospectorNeedsDialect(t *testing.T) {
	f := newResolverFixture(t, withoutIntrospector())

	_, err := f.res.RenderTimePattern("last_30_days", "", "ORDER_DATE")
	assert.Error(t, err)
}

func TestDisplayNameFor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SALES.CUSTOMER_ORDERS", "Customer Order"},
		{"SECRET_TABLE", "Secret Table"},
		{"CATEGORIES", "Category"},
		{"dbo.people", "Person"},
		{"___", "___"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, displayNameFor(tt.in))
		})
	}
}
