package mssql

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string

	// AuthMethod is "sql" (username/password) or "service_principal" (Azure AD app).
	AuthMethod string

	// SQL authentication
	Username string
	Password string

	// Service principal authentication
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      time.Duration
	MaxConns               int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout.
func DefaultConnectionTimeout() time.Duration {
	return 30 * time.Second
}

// DefaultSchema is used for unqualified table names.
func DefaultSchema() string {
	return "dbo"
}

// FromConnectionConfig fills SQL Server defaults into a generic connection config.
func FromConnectionConfig(cc datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:                   cc.Host,
		Port:                   cc.Port,
		Database:               cc.Database,
		Schema:                 cc.Schema,
		AuthMethod:             strings.ToLower(strings.TrimSpace(cc.AuthMethod)),
		Username:               cc.User,
		Password:               cc.Password,
		TenantID:               cc.TenantID,
		ClientID:               cc.ClientID,
		ClientSecret:           cc.ClientSecret,
		Encrypt:                cc.Encrypt,
		TrustServerCertificate: cc.TrustServerCertificate,
		ConnectionTimeout:      cc.ConnectTimeout,
		MaxConns:               int(cc.MaxConns),
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = AuthSQL
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema()
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL, "":
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}
	return nil
}
