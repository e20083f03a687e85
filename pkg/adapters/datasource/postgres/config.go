package postgres

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	Schema         string
	SSLMode        string // "disable", "require", "verify-ca", "verify-full"
	ConnectTimeout time.Duration
	MaxConns       int32
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// DefaultSchema is used for unqualified table names.
func DefaultSchema() string {
	return "public"
}

// FromConnectionConfig fills PostgreSQL defaults into a generic connection config.
func FromConnectionConfig(cc datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:           cc.Host,
		Port:           cc.Port,
		User:           cc.User,
		Password:       cc.Password,
		Database:       cc.Database,
		Schema:         cc.Schema,
		SSLMode:        cc.SSLMode,
		ConnectTimeout: cc.ConnectTimeout,
		MaxConns:       cc.MaxConns,
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema()
	}
	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing. Inside Docker, localhost resolves to host.docker.internal.
func buildConnectionString(cfg *Config) string {
	host := config.ResolveHostForDocker(cfg.Host)

	connStr := fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		url.QueryEscape(cfg.SSLMode),
	)
	if cfg.ConnectTimeout > 0 {
		connStr += fmt.Sprintf("&connect_timeout=%d", int(cfg.ConnectTimeout.Seconds()))
	}
	return connStr
}
