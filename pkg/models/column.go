package models

import "maps"

// ColumnDescriptor is the resolved semantic description of one column.
// It is produced by merging configuration layers and is never stored raw.
type ColumnDescriptor struct {
	Name          string            `json:"name"`
	SemanticType  SemanticType      `json:"semantic_type"`
	Description   string            `json:"description,omitempty"`
	EnumValues    map[string]string `json:"enum_values,omitempty"`
	AIHints       string            `json:"ai_hints,omitempty"`
	UsageNotes    string            `json:"usage_notes,omitempty"`
	TimezoneAware *bool             `json:"timezone_aware,omitempty"`
	Source        ColumnSource      `json:"source"`

	// Physical attributes, populated only when the live database was consulted.
	DataType     string `json:"data_type,omitempty"`
	IsNullable   bool   `json:"is_nullable,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (c ColumnDescriptor) Clone() ColumnDescriptor {
	out := c
	if c.EnumValues != nil {
		out.EnumValues = maps.Clone(c.EnumValues)
	}
	if c.TimezoneAware != nil {
		v := *c.TimezoneAware
		out.TimezoneAware = &v
	}
	return out
}

// LiveColumn is a physical column reported by the live database.
type LiveColumn struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	Comment      string `json:"comment,omitempty"`

	ReferencedTable  string `json:"referenced_table,omitempty"`
	ReferencedColumn string `json:"referenced_column,omitempty"`
}

// DefaultSemanticType derives the weakest-precedence semantic type from physical
// attributes alone. Used when neither a table config entry nor a global pattern matches.
func (c LiveColumn) DefaultSemanticType() SemanticType {
	switch {
	case c.IsPrimaryKey:
		return SemanticPrimaryIdentifier
	case c.ReferencedTable != "":
		return SemanticForeignKey
	default:
		return SemanticUnknown
	}
}
