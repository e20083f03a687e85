package models

import (
	"testing"
)

func TestProvenance_String(t *testing.T) {
	tests := []struct {
		p        Provenance
		expected string
	}{
		{ProvenanceStatic, "static"},
		{ProvenanceDynamic, "dynamic"},
		{ProvenanceLive, "live"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.p.String(); got != tt.expected {
				t.Errorf("Provenance.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProvenance_IsValid(t *testing.T) {
	tests := []struct {
		p        Provenance
		expected bool
	}{
		{ProvenanceStatic, true},
		{ProvenanceDynamic, true},
		{ProvenanceLive, true},
		{Provenance("invalid"), false},
		{Provenance(""), false},
		{Provenance("STATIC"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			if got := tt.p.IsValid(); got != tt.expected {
				t.Errorf("Provenance(%q).IsValid() = %v, want %v", tt.p, got, tt.expected)
			}
		})
	}
}

func TestParseProvenance(t *testing.T) {
	p, err := ParseProvenance("dynamic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != ProvenanceDynamic {
		t.Errorf("ParseProvenance(dynamic) = %q", p)
	}
	if _, err := ParseProvenance("cached"); err == nil {
		t.Error("expected error for unknown provenance")
	}
}

func TestColumnSource_Rank(t *testing.T) {
	if !(ColumnSourceTableConfig.Rank() > ColumnSourcePattern.Rank()) {
		t.Error("table config must outrank global patterns")
	}
	if !(ColumnSourcePattern.Rank() > ColumnSourceLive.Rank()) {
		t.Error("global patterns must outrank live defaults")
	}
	if !(ColumnSourceLive.Rank() > ColumnSourceDefault.Rank()) {
		t.Error("live defaults must outrank the empty default")
	}
}
