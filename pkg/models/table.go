package models

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeTableName returns the canonical cache and lookup key for a table name.
func NormalizeTableName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// TableKind distinguishes base tables from views.
type TableKind string

const (
	TableKindTable TableKind = "TABLE"
	TableKindView  TableKind = "VIEW"
)

// ParseTableKind converts a whitelist table_type value into a TableKind.
// An empty value defaults to TableKindTable.
func ParseTableKind(s string) (TableKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TABLE", "BASE TABLE":
		return TableKindTable, nil
	case "VIEW":
		return TableKindView, nil
	default:
		return "", fmt.Errorf("unknown table type %q", s)
	}
}

// ImportanceTier ranks how critical a table is to the business.
type ImportanceTier string

const (
	ImportanceCritical ImportanceTier = "critical"
	ImportanceHigh     ImportanceTier = "high"
	ImportanceMedium   ImportanceTier = "medium"
	ImportanceLow      ImportanceTier = "low"
)

// ParseImportanceTier converts a string into an ImportanceTier.
// An empty value defaults to ImportanceMedium.
func ParseImportanceTier(s string) (ImportanceTier, error) {
	switch ImportanceTier(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ImportanceMedium, nil
	case ImportanceCritical:
		return ImportanceCritical, nil
	case ImportanceHigh:
		return ImportanceHigh, nil
	case ImportanceMedium:
		return ImportanceMedium, nil
	case ImportanceLow:
		return ImportanceLow, nil
	default:
		return "", fmt.Errorf("unknown importance level %q", s)
	}
}

// WhitelistEntry is a table the engine is permitted to expose.
type WhitelistEntry struct {
	TableName   string         `json:"table_name"`
	Kind        TableKind      `json:"table_type"`
	DisplayName string         `json:"display_name"`
	Category    string         `json:"category,omitempty"`
	Importance  ImportanceTier `json:"importance"`
}

// TableDescriptor is the fully resolved view of a table handed to consumers.
type TableDescriptor struct {
	TableName     string             `json:"table_name"`
	DisplayName   string             `json:"display_name"`
	Kind          TableKind          `json:"table_type"`
	Category      string             `json:"category,omitempty"`
	Importance    ImportanceTier     `json:"importance,omitempty"`
	Columns       []ColumnDescriptor `json:"columns"`
	Relationships *Relationships     `json:"relationships,omitempty"`
	BusinessLogic *BusinessLogic     `json:"business_logic,omitempty"`
	Provenance    Provenance         `json:"provenance"`
	Whitelisted   bool               `json:"whitelisted"`
	// LiveColumnsMerged is true when the column list includes physical columns
	// reported by the live database.
	LiveColumnsMerged bool      `json:"live_columns_merged"`
	ResolvedAt        time.Time `json:"resolved_at"`
}

// Column returns the descriptor for the named column (case-insensitive).
func (d *TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Clone returns a deep copy so callers can never mutate cached state.
func (d *TableDescriptor) Clone() *TableDescriptor {
	if d == nil {
		return nil
	}
	out := *d
	if d.Columns != nil {
		out.Columns = make([]ColumnDescriptor, len(d.Columns))
		for i, c := range d.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	out.Relationships = d.Relationships.Clone()
	out.BusinessLogic = d.BusinessLogic.Clone()
	return &out
}

// WithProvenance returns a copy of d tagged with p.
func (d *TableDescriptor) WithProvenance(p Provenance) *TableDescriptor {
	out := d.Clone()
	out.Provenance = p
	return out
}
