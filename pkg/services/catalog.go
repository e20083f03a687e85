package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// Dependencies lists the table's outgoing foreign keys, resolved through the
// same access gate as Resolve. Constraint names are synthesized as FK_<TABLE>_<COLUMN>.
func (r *resolver) Dependencies(ctx context.Context, table string) ([]models.TableDependency, error) {
	desc, err := r.Resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	deps := []models.TableDependency{}
	if desc.Relationships == nil {
		return deps, nil
	}
	for _, fk := range desc.Relationships.ForeignKeys {
		deps = append(deps, models.TableDependency{
			ConstraintName:   fmt.Sprintf("FK_%s_%s", desc.TableName, strings.ToUpper(fk.Column)),
			ParentTable:      desc.TableName,
			ParentColumn:     fk.Column,
			ReferencedTable:  models.NormalizeTableName(fk.ReferencedTable()),
			ReferencedColumn: fk.ReferencedColumn(),
		})
	}
	return deps, nil
}

func (r *resolver) ListTables() []models.TableSummary {
	cs := r.store.Current()
	names := cs.Tables()
	out := make([]models.TableSummary, 0, len(names))
	for _, name := range names {
		entry, _ := cs.Whitelisted(name)
		out = append(out, models.TableSummary{
			TableName:   entry.TableName,
			Kind:        entry.Kind,
			DisplayName: entry.DisplayName,
			Category:    entry.Category,
			Importance:  entry.Importance,
			Documented:  cs.Detail(name) != nil,
		})
	}
	return out
}

func (r *resolver) Summary() models.SchemaSummary {
	cs := r.store.Current()
	return models.SchemaSummary{
		TotalTables:      len(cs.Tables()),
		DocumentedTables: cs.DocumentedTables(),
		TotalKeyColumns:  cs.KeyColumnCount(),
		ColumnPatterns:   cs.Matcher().Len(),
		TimePatterns:     cs.TimePatterns().Len(),
		StrictMode:       r.cfg.StrictMode,
		Cache:            r.CacheStats(),
		LoadedAt:         cs.LoadedAt(),
	}
}

// RenderTimePattern renders for the live database's dialect when dialect is empty.
func (r *resolver) RenderTimePattern(name, dialect, column string) (string, error) {
	if strings.TrimSpace(dialect) == "" && r.introspector != nil {
		dialect = r.introspector.Dialect().String()
	}
	d, err := models.ParseDialect(dialect)
	if err != nil {
		return "", err
	}
	return r.store.Current().TimePatterns().Render(name, d, column)
}
