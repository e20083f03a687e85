// Package models contains domain types for the schema resolution engine.
package models

import (
	"fmt"
	"strings"
)

// SemanticType is the business meaning assigned to a column, independent of its
// physical SQL data type.
type SemanticType string

const (
	SemanticPrimaryIdentifier SemanticType = "primary_identifier"
	SemanticForeignKey        SemanticType = "foreign_key"
	SemanticPrimaryDate       SemanticType = "primary_date"
	SemanticPrimaryAmount     SemanticType = "primary_amount"
	SemanticStatus            SemanticType = "status"
	SemanticMoney             SemanticType = "money"
	SemanticQuantity          SemanticType = "quantity"
	SemanticDatetime          SemanticType = "datetime"
	SemanticCode              SemanticType = "code"
	SemanticIdentifier        SemanticType = "identifier"
	SemanticName              SemanticType = "name"
	SemanticCategory          SemanticType = "category"
	SemanticUnknown           SemanticType = "unknown"
)

// AllSemanticTypes lists every semantic type in declaration order.
var AllSemanticTypes = []SemanticType{
	SemanticPrimaryIdentifier,
	SemanticForeignKey,
	SemanticPrimaryDate,
	SemanticPrimaryAmount,
	SemanticStatus,
	SemanticMoney,
	SemanticQuantity,
	SemanticDatetime,
	SemanticCode,
	SemanticIdentifier,
	SemanticName,
	SemanticCategory,
	SemanticUnknown,
}

// ParseSemanticType converts a configuration string into a SemanticType.
// Matching is case-insensitive. An empty string maps to SemanticUnknown.
func ParseSemanticType(s string) (SemanticType, error) {
	normalized := SemanticType(strings.ToLower(strings.TrimSpace(s)))
	if normalized == "" {
		return SemanticUnknown, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("unknown semantic type %q", s)
	}
	return normalized, nil
}

// IsValid returns true if t is one of the enumerated semantic types.
func (t SemanticType) IsValid() bool {
	switch t {
	case SemanticPrimaryIdentifier, SemanticForeignKey, SemanticPrimaryDate,
		SemanticPrimaryAmount, SemanticStatus, SemanticMoney, SemanticQuantity,
		SemanticDatetime, SemanticCode, SemanticIdentifier, SemanticName,
		SemanticCategory, SemanticUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of a SemanticType.
func (t SemanticType) String() string {
	return string(t)
}

// Label returns a short human-readable label used when rendering schemas for a
// SQL-generation client.
func (t SemanticType) Label() string {
	switch t {
	case SemanticPrimaryIdentifier:
		return "primary key"
	case SemanticForeignKey:
		return "foreign key"
	case SemanticPrimaryDate:
		return "primary date"
	case SemanticPrimaryAmount:
		return "primary amount"
	case SemanticStatus:
		return "status"
	case SemanticMoney:
		return "money"
	case SemanticQuantity:
		return "quantity"
	case SemanticDatetime:
		return "date/time"
	case SemanticCode:
		return "code"
	case SemanticIdentifier:
		return "identifier"
	case SemanticName:
		return "name"
	case SemanticCategory:
		return "category"
	case SemanticUnknown:
		return ""
	default:
		return ""
	}
}

// IsTemporal returns true for semantic types that hold dates or timestamps.
// Time-pattern templates are only meaningful for these columns.
func (t SemanticType) IsTemporal() bool {
	switch t {
	case SemanticPrimaryDate, SemanticDatetime:
		return true
	case SemanticPrimaryIdentifier, SemanticForeignKey, SemanticPrimaryAmount,
		SemanticStatus, SemanticMoney, SemanticQuantity, SemanticCode,
		SemanticIdentifier, SemanticName, SemanticCategory, SemanticUnknown:
		return false
	default:
		return false
	}
}
