package models

import (
	"maps"
	"slices"
	"strings"
)

// TableDetailConfig is the optional per-table documentation an operator writes
// for tables that need verified business logic.
type TableDetailConfig struct {
	TableName     string
	DisplayName   string
	Category      string
	Importance    ImportanceTier
	KeyColumns    []ColumnDescriptor // file order
	Relationships *Relationships
	BusinessLogic *BusinessLogic
}

// KeyColumn returns the explicit column entry for name (case-insensitive).
func (c *TableDetailConfig) KeyColumn(name string) (ColumnDescriptor, bool) {
	if c == nil {
		return ColumnDescriptor{}, false
	}
	for _, col := range c.KeyColumns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnDescriptor{}, false
}

// Relationships describes how a table joins to others.
type Relationships struct {
	PrimaryKey   []string         `json:"primary_key,omitempty"`
	ForeignKeys  []ForeignKey     `json:"foreign_keys,omitempty"`
	ParentTables []JoinDescriptor `json:"parent_tables,omitempty"`
	ChildTables  []JoinDescriptor `json:"child_tables,omitempty"`
}

// ForeignKey is an outgoing reference. References has the form "TABLE.COLUMN".
type ForeignKey struct {
	Column      string `json:"column"`
	References  string `json:"references"`
	Description string `json:"description,omitempty"`
}

// ReferencedTable returns the table part of References.
func (fk ForeignKey) ReferencedTable() string {
	table, _, _ := strings.Cut(fk.References, ".")
	return table
}

// ReferencedColumn returns the column part of References, or "" if absent.
func (fk ForeignKey) ReferencedColumn() string {
	_, column, _ := strings.Cut(fk.References, ".")
	return column
}

// JoinDescriptor describes a parent or child join.
type JoinDescriptor struct {
	Table         string `json:"table"`
	JoinCondition string `json:"join_condition"`
	Cardinality   string `json:"cardinality,omitempty"` // e.g. one_to_many, many_to_one
	Description   string `json:"description,omitempty"`
}

// Clone returns a deep copy.
func (r *Relationships) Clone() *Relationships {
	if r == nil {
		return nil
	}
	return &Relationships{
		PrimaryKey:   slices.Clone(r.PrimaryKey),
		ForeignKeys:  slices.Clone(r.ForeignKeys),
		ParentTables: slices.Clone(r.ParentTables),
		ChildTables:  slices.Clone(r.ChildTables),
	}
}

// BusinessLogic captures the semantics an operator verified for a table.
type BusinessLogic struct {
	PrimaryDateField    string            `json:"primary_date_field,omitempty"`
	PrimaryAmountField  string            `json:"primary_amount_field,omitempty"`
	StatusField         string            `json:"status_field,omitempty"`
	StatusValues        map[string]string `json:"status_values,omitempty"`
	ActiveRecordsFilter string            `json:"active_records_filter,omitempty"`
	CalculatedFields    []CalculatedField `json:"calculated_fields,omitempty"`
}

// CalculatedField is a derived value with one SQL template per dialect.
type CalculatedField struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	SQL         map[Dialect]string `json:"sql"`
}

// Clone returns a deep copy.
func (b *BusinessLogic) Clone() *BusinessLogic {
	if b == nil {
		return nil
	}
	out := *b
	out.StatusValues = maps.Clone(b.StatusValues)
	if b.CalculatedFields != nil {
		out.CalculatedFields = make([]CalculatedField, len(b.CalculatedFields))
		for i, f := range b.CalculatedFields {
			f.SQL = maps.Clone(f.SQL)
			out.CalculatedFields[i] = f
		}
	}
	return &out
}
