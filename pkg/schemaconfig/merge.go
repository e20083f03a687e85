package schemaconfig

import (
	"strings"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// Merge resolves semantics for each named column with fixed precedence:
// the table's detail entry, then the first matching global pattern, then unknown.
// It reads only the ConfigSet, so identical inputs always give identical output.
func (c *ConfigSet) Merge(table string, columns []string) []models.ColumnDescriptor {
	detail := c.Detail(table)
	out := make([]models.ColumnDescriptor, 0, len(columns))
	for _, name := range columns {
		if col, ok := c.explicitOrPattern(detail, name); ok {
			out = append(out, col)
			continue
		}
		out = append(out, models.ColumnDescriptor{
			Name:         name,
			SemanticType: models.SemanticUnknown,
			Source:       models.ColumnSourceDefault,
		})
	}
	return out
}

// MergeLive unions the table's configured key columns with the physical columns
// reported by the live database. Configured columns come first in file order and
// gain physical attributes when the live database also reports them. Remaining
// live columns follow in live order, described by a global pattern when one
// matches and by their physical attributes otherwise.
func (c *ConfigSet) MergeLive(table string, live []models.LiveColumn) []models.ColumnDescriptor {
	detail := c.Detail(table)

	liveByName := make(map[string]models.LiveColumn, len(live))
	for _, lc := range live {
		liveByName[strings.ToUpper(lc.Name)] = lc
	}

	var out []models.ColumnDescriptor
	configured := make(map[string]bool)
	if detail != nil {
		for _, kc := range detail.KeyColumns {
			col := kc.Clone()
			if lc, ok := liveByName[strings.ToUpper(kc.Name)]; ok {
				col.Name = lc.Name
				applyPhysical(&col, lc)
			}
			configured[strings.ToUpper(kc.Name)] = true
			out = append(out, col)
		}
	}

	for _, lc := range live {
		if configured[strings.ToUpper(lc.Name)] {
			continue
		}
		col, ok := c.explicitOrPattern(nil, lc.Name)
		if !ok {
			col = models.ColumnDescriptor{
				Name:         lc.Name,
				SemanticType: lc.DefaultSemanticType(),
				Description:  lc.Comment,
				Source:       models.ColumnSourceLive,
			}
		}
		applyPhysical(&col, lc)
		out = append(out, col)
	}
	return out
}

// Descriptor builds the merged table descriptor without provenance or timestamp.
// With live columns the column list is the MergeLive union; without, it is the
// configured key columns. Returns nil when the table is neither whitelisted nor
// documented and no live columns were supplied.
func (c *ConfigSet) Descriptor(table string, live []models.LiveColumn) *models.TableDescriptor {
	key := models.NormalizeTableName(table)
	entry, whitelisted := c.whitelist[key]
	detail := c.details[key]
	if !whitelisted && detail == nil && live == nil {
		return nil
	}

	d := &models.TableDescriptor{
		TableName:   key,
		DisplayName: key,
		Kind:        models.TableKindTable,
		Importance:  models.ImportanceMedium,
		Whitelisted: whitelisted,
	}
	if whitelisted {
		d.DisplayName = entry.DisplayName
		d.Kind = entry.Kind
		d.Category = entry.Category
		d.Importance = entry.Importance
	}
	if detail != nil {
		if detail.DisplayName != "" {
			d.DisplayName = detail.DisplayName
		}
		if d.Category == "" {
			d.Category = detail.Category
		}
		if !whitelisted {
			d.Importance = detail.Importance
		}
		d.Relationships = detail.Relationships.Clone()
		d.BusinessLogic = detail.BusinessLogic.Clone()
	}

	if live != nil {
		d.Columns = c.MergeLive(key, live)
		d.LiveColumnsMerged = true
		if d.Relationships == nil {
			d.Relationships = relationshipsFromLive(live)
		}
	} else if detail != nil {
		names := make([]string, len(detail.KeyColumns))
		for i, kc := range detail.KeyColumns {
			names[i] = kc.Name
		}
		d.Columns = c.Merge(key, names)
	}
	if d.Columns == nil {
		d.Columns = []models.ColumnDescriptor{}
	}
	return d
}

func (c *ConfigSet) explicitOrPattern(detail *models.TableDetailConfig, name string) (models.ColumnDescriptor, bool) {
	if kc, ok := detail.KeyColumn(name); ok {
		col := kc.Clone()
		col.Name = name
		return col, true
	}
	if d := c.matcher.Describe(name); d != nil {
		return *d, true
	}
	return models.ColumnDescriptor{}, false
}

func applyPhysical(col *models.ColumnDescriptor, lc models.LiveColumn) {
	col.DataType = lc.DataType
	col.IsNullable = lc.IsNullable
	col.IsPrimaryKey = lc.IsPrimaryKey
	if col.Description == "" {
		col.Description = lc.Comment
	}
}

func relationshipsFromLive(live []models.LiveColumn) *models.Relationships {
	rel := &models.Relationships{}
	for _, lc := range live {
		if lc.IsPrimaryKey {
			rel.PrimaryKey = append(rel.PrimaryKey, lc.Name)
		}
		if lc.ReferencedTable != "" {
			ref := lc.ReferencedTable
			if lc.ReferencedColumn != "" {
				ref += "." + lc.ReferencedColumn
			}
			rel.ForeignKeys = append(rel.ForeignKeys, models.ForeignKey{Column: lc.Name, References: ref})
		}
	}
	if len(rel.PrimaryKey) == 0 && len(rel.ForeignKeys) == 0 {
		return nil
	}
	return rel
}
