package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// DefaultConfigFile is read when present; environment variables always override it.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for the schema engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Schema resolution and caching
	Schema SchemaConfig `yaml:"schema"`

	// Live database consulted for introspection (optional)
	LiveDB LiveDBConfig `yaml:"live_database"`
}

// SchemaConfig controls the resolver, cache, and preload.
type SchemaConfig struct {
	// StrictMode rejects tables that are not whitelisted.
	StrictMode bool `yaml:"strict_mode" env:"SCHEMA_STRICT_MODE"`
	// EnableCache turns the in-process schema cache on or off.
	EnableCache     bool `yaml:"enable_cache" env:"SCHEMA_ENABLE_CACHE"`
	CacheTTLMinutes int  `yaml:"cache_ttl_minutes" env:"SCHEMA_CACHE_TTL_MINUTES" env-default:"60"`
	CacheMaxSize    int  `yaml:"cache_max_size" env:"SCHEMA_CACHE_MAX_SIZE" env-default:"1000"`
	// CacheSweepSeconds is the interval of the expired-entry sweeper; 0 disables it.
	CacheSweepSeconds int `yaml:"cache_sweep_seconds" env:"SCHEMA_CACHE_SWEEP_SECONDS" env-default:"60"`

	ConfigDir   string `yaml:"config_dir" env:"SCHEMA_CONFIG_DIR" env-default:"schemas_config"`
	WatchConfig bool   `yaml:"watch_config" env:"SCHEMA_WATCH_CONFIG" env-default:"false"`

	PreloadOnStartup bool `yaml:"preload_on_startup" env:"SCHEMA_PRELOAD_ON_STARTUP"`
	// PreloadTablesStr is a comma-separated list of extra tables for the dynamic preload pass.
	PreloadTablesStr string `yaml:"preload_tables" env:"SCHEMA_PRELOAD_TABLES" env-default:""`
	// PreloadTiersStr selects which importance tiers the static preload pass loads.
	PreloadTiersStr   string `yaml:"preload_tiers" env:"SCHEMA_PRELOAD_TIERS" env-default:"critical,high"`
	ValidateWhitelist bool   `yaml:"validate_whitelist" env:"SCHEMA_VALIDATE_WHITELIST"`

	MaxConcurrentQueries int     `yaml:"max_concurrent_queries" env:"SCHEMA_MAX_CONCURRENT_QUERIES" env-default:"5"`
	LiveTimeoutSeconds   int     `yaml:"live_timeout_seconds" env:"SCHEMA_LIVE_TIMEOUT_SECONDS" env-default:"10"`
	LiveRatePerSecond    float64 `yaml:"live_rate_per_second" env:"SCHEMA_LIVE_RATE_PER_SECOND" env-default:"20"`

	// Parsed from the *Str fields (not from config file).
	PreloadTables []string                `yaml:"-"`
	PreloadTiers  []models.ImportanceTier `yaml:"-"`
}

// LiveDBConfig describes the live database. An empty Host means none is configured.
type LiveDBConfig struct {
	Type     string `yaml:"type" env:"DB_TYPE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:""`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"0"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:""`
	User     string `yaml:"user" env:"DB_USER" env-default:""`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:""`
	Schema   string `yaml:"schema" env:"DB_SCHEMA" env-default:""`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`

	Encrypt                bool `yaml:"mssql_encrypt" env:"MSSQL_ENCRYPT"`
	TrustServerCertificate bool `yaml:"mssql_trust_server_certificate" env:"MSSQL_TRUST_CERTIFICATE" env-default:"false"`

	// SQL Server auth: "sql" or "service_principal" (Azure AD app registration).
	AuthMethod   string `yaml:"mssql_auth_method" env:"MSSQL_AUTH_METHOD" env-default:"sql"`
	TenantID     string `yaml:"mssql_tenant_id" env:"MSSQL_TENANT_ID" env-default:""`
	ClientID     string `yaml:"mssql_client_id" env:"MSSQL_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"-" env:"MSSQL_CLIENT_SECRET"` // Secret - not in YAML
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigFile, version)
}

// LoadFile is Load with an explicit YAML path. A missing file falls back to
// environment variables and defaults.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	var explicit explicitBools
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if explicit, err = readExplicitBools(path); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.applyBoolDefaults(explicit)

	// Parse complex fields
	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// explicitBools records which default-true flags the YAML file sets. cleanenv
// applies env-default to zero values, so it cannot tell an explicit false from
// an absent key; these flags are defaulted by applyBoolDefaults instead.
type explicitBools struct {
	Schema struct {
		StrictMode        *bool `yaml:"strict_mode"`
		EnableCache       *bool `yaml:"enable_cache"`
		PreloadOnStartup  *bool `yaml:"preload_on_startup"`
		ValidateWhitelist *bool `yaml:"validate_whitelist"`
	} `yaml:"schema"`
	LiveDB struct {
		Encrypt *bool `yaml:"mssql_encrypt"`
	} `yaml:"live_database"`
}

func readExplicitBools(path string) (explicitBools, error) {
	var eb explicitBools
	data, err := os.ReadFile(path)
	if err != nil {
		return eb, err
	}
	if err := yaml.Unmarshal(data, &eb); err != nil {
		return eb, err
	}
	return eb, nil
}

// applyBoolDefaults sets each default-true flag that neither the YAML file nor
// its environment variable set.
func (c *Config) applyBoolDefaults(eb explicitBools) {
	defaultTrue := func(field *bool, fromYAML *bool, envVar string) {
		if fromYAML != nil || os.Getenv(envVar) != "" {
			return
		}
		*field = true
	}
	defaultTrue(&c.Schema.StrictMode, eb.Schema.StrictMode, "SCHEMA_STRICT_MODE")
	defaultTrue(&c.Schema.EnableCache, eb.Schema.EnableCache, "SCHEMA_ENABLE_CACHE")
	defaultTrue(&c.Schema.PreloadOnStartup, eb.Schema.PreloadOnStartup, "SCHEMA_PRELOAD_ON_STARTUP")
	defaultTrue(&c.Schema.ValidateWhitelist, eb.Schema.ValidateWhitelist, "SCHEMA_VALIDATE_WHITELIST")
	defaultTrue(&c.LiveDB.Encrypt, eb.LiveDB.Encrypt, "MSSQL_ENCRYPT")
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Schema.PreloadTables = parseTableList(c.Schema.PreloadTablesStr)

	tiers, err := parseTiers(c.Schema.PreloadTiersStr)
	if err != nil {
		return err
	}
	c.Schema.PreloadTiers = tiers

	c.LiveDB.Type = strings.ToLower(strings.TrimSpace(c.LiveDB.Type))
	if c.LiveDB.Type == "sqlserver" {
		c.LiveDB.Type = "mssql"
	}
	return nil
}

func (c *Config) validate() error {
	s := c.Schema
	if s.CacheTTLMinutes <= 0 {
		return fmt.Errorf("cache_ttl_minutes must be positive, got %d", s.CacheTTLMinutes)
	}
	if s.CacheMaxSize <= 0 {
		return fmt.Errorf("cache_max_size must be positive, got %d", s.CacheMaxSize)
	}
	if s.MaxConcurrentQueries < 1 {
		return fmt.Errorf("max_concurrent_queries must be at least 1, got %d", s.MaxConcurrentQueries)
	}
	if s.LiveTimeoutSeconds <= 0 {
		return fmt.Errorf("live_timeout_seconds must be positive, got %d", s.LiveTimeoutSeconds)
	}
	if s.LiveRatePerSecond < 0 {
		return fmt.Errorf("live_rate_per_second must not be negative, got %v", s.LiveRatePerSecond)
	}
	if s.CacheSweepSeconds < 0 {
		return fmt.Errorf("cache_sweep_seconds must not be negative, got %d", s.CacheSweepSeconds)
	}
	if strings.TrimSpace(s.ConfigDir) == "" {
		return fmt.Errorf("config_dir is required")
	}

	if c.HasLiveDatabase() {
		switch c.LiveDB.Type {
		case "postgres", "mssql":
		default:
			return fmt.Errorf("unsupported live database type %q (must be postgres or mssql)", c.LiveDB.Type)
		}
		if c.LiveDB.Name == "" {
			return fmt.Errorf("live database name is required when DB_HOST is set")
		}
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// HasLiveDatabase reports whether a live database is configured.
func (c *Config) HasLiveDatabase() bool {
	return strings.TrimSpace(c.LiveDB.Host) != ""
}

// EffectiveYAML renders the loaded configuration as YAML. Secrets are
// tagged yaml:"-" and never appear in the output.
func (c *Config) EffectiveYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal effective config: %w", err)
	}
	return string(out), nil
}

// LiveConnection returns the adapter-neutral connection config for the live database.
func (c *Config) LiveConnection() datasource.ConnectionConfig {
	return datasource.ConnectionConfig{
		Type:                   c.LiveDB.Type,
		Host:                   c.LiveDB.Host,
		Port:                   c.LiveDB.Port,
		Database:               c.LiveDB.Name,
		User:                   c.LiveDB.User,
		Password:               c.LiveDB.Password,
		Schema:                 c.LiveDB.Schema,
		SSLMode:                c.LiveDB.SSLMode,
		Encrypt:                c.LiveDB.Encrypt,
		TrustServerCertificate: c.LiveDB.TrustServerCertificate,
		AuthMethod:             c.LiveDB.AuthMethod,
		TenantID:               c.LiveDB.TenantID,
		ClientID:               c.LiveDB.ClientID,
		ClientSecret:           c.LiveDB.ClientSecret,
		ConnectTimeout:         c.Schema.LiveTimeout(),
		MaxConns:               c.LiveDB.MaxConns,
	}
}

// CacheTTL returns the default cache entry lifetime.
func (s *SchemaConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// LiveTimeout bounds a single live introspection call.
func (s *SchemaConfig) LiveTimeout() time.Duration {
	return time.Duration(s.LiveTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweeper interval, zero when disabled.
func (s *SchemaConfig) SweepInterval() time.Duration {
	return time.Duration(s.CacheSweepSeconds) * time.Second
}

// parseTableList splits a comma-separated list into normalized, de-duplicated table names.
func parseTableList(value string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		name := models.NormalizeTableName(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// parseTiers parses a comma-separated list of importance tiers.
func parseTiers(value string) ([]models.ImportanceTier, error) {
	var out []models.ImportanceTier
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tier, err := models.ParseImportanceTier(part)
		if err != nil {
			return nil, fmt.Errorf("preload_tiers: %w", err)
		}
		out = append(out, tier)
	}
	return out, nil
}
