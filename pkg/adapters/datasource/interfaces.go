package datasource

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// ErrTableNotFound is returned by an Introspector when the live database has no
// table (or view) with the requested name.
var ErrTableNotFound = errors.New("table not found in live database")

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// Introspector reads physical table metadata from the live database.
// Table names are matched case-insensitively and may carry a schema prefix
// ("sales.orders"); unqualified names use the configured default schema.
type Introspector interface {
	ConnectionTester

	// TableExists reports whether the table or view exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// FetchLiveSchema returns the columns of the table in ordinal order.
	// Returns ErrTableNotFound when the table has no columns.
	FetchLiveSchema(ctx context.Context, table string) ([]models.LiveColumn, error)

	// Dialect identifies the SQL dialect spoken by the database.
	Dialect() models.Dialect
}

// ConnectionConfig is the adapter-neutral description of a live database.
type ConnectionConfig struct {
	Type     string // registered adapter type: "postgres" or "mssql"
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Schema   string // default schema for unqualified table names

	SSLMode                string // postgres
	Encrypt                bool   // mssql
	TrustServerCertificate bool   // mssql

	// mssql service principal auth; AuthMethod "" means SQL authentication.
	AuthMethod   string
	TenantID     string
	ClientID     string
	ClientSecret string

	ConnectTimeout time.Duration
	MaxConns       int32
}

// SplitTableName splits an optionally schema-qualified table name.
// Brackets and double quotes around either part are removed.
func SplitTableName(name, defaultSchema string) (schema, table string) {
	cleaned := strings.NewReplacer("[", "", "]", "", `"`, "").Replace(strings.TrimSpace(name))
	if i := strings.LastIndex(cleaned, "."); i >= 0 {
		return cleaned[:i], cleaned[i+1:]
	}
	return defaultSchema, cleaned
}
