package models

import (
	"fmt"
	"strings"
)

// Dialect is a SQL dialect that time patterns and calculated fields provide templates for.
type Dialect string

const (
	DialectMSSQL      Dialect = "mssql"
	DialectPostgreSQL Dialect = "postgresql"
)

// ParseDialect converts a dialect or datasource type name into a Dialect.
// Accepts the adapter type names ("postgres", "sqlserver") as aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mssql", "sqlserver", "tsql":
		return DialectMSSQL, nil
	case "postgresql", "postgres", "pg":
		return DialectPostgreSQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", s)
	}
}

// String returns the string representation of a Dialect.
func (d Dialect) String() string {
	return string(d)
}
