package models

import "fmt"

// Provenance records where a cached table descriptor came from.
type Provenance string

const (
	// ProvenanceStatic is a descriptor merged from whitelisted static configuration.
	ProvenanceStatic Provenance = "static"
	// ProvenanceDynamic is a descriptor fetched from the live database on a cache miss
	// for a table that is not whitelisted (strict mode off).
	ProvenanceDynamic Provenance = "dynamic"
	// ProvenanceLive is a descriptor produced by an explicit live query that bypassed the cache.
	ProvenanceLive Provenance = "live"
)

// String returns the string representation of a Provenance.
func (p Provenance) String() string {
	return string(p)
}

// IsValid returns true if p is a known provenance tag.
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceStatic, ProvenanceDynamic, ProvenanceLive:
		return true
	default:
		return false
	}
}

// ParseProvenance converts a string into a Provenance.
func ParseProvenance(s string) (Provenance, error) {
	p := Provenance(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown provenance %q", s)
	}
	return p, nil
}

// ColumnSource records which configuration layer produced a column's semantics.
// Precedence is fixed: ColumnSourceTableConfig > ColumnSourcePattern > ColumnSourceLive.
type ColumnSource string

const (
	ColumnSourceTableConfig ColumnSource = "table_config"
	ColumnSourcePattern     ColumnSource = "global_pattern"
	ColumnSourceLive        ColumnSource = "live"
	ColumnSourceDefault     ColumnSource = "default"
)

// Rank returns the precedence rank of a source. Higher wins.
func (s ColumnSource) Rank() int {
	switch s {
	case ColumnSourceTableConfig:
		return 3
	case ColumnSourcePattern:
		return 2
	case ColumnSourceLive:
		return 1
	case ColumnSourceDefault:
		return 0
	default:
		return 0
	}
}
