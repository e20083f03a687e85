package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"github.com/microsoft/go-mssqldb/azuread"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/retry"
)

// Adapter provides SQL Server connectivity and live schema introspection.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// buildConnectionString returns the driver name and sqlserver:// URL for the
// configured auth method. Service principals go through the azuresql driver.
func buildConnectionString(cfg *Config) (driver, dsn string) {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", int(cfg.ConnectionTimeout.Seconds())))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	if cfg.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return azuread.DriverName, fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode())
	}

	return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		query.Encode(),
	)
}

// NewAdapter opens a SQL Server connection and pings it, retrying transient failures.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, dsn := buildConnectionString(cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %s", cfg.AuthMethod, logging.SanitizeError(err))
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	err = retry.Do(ctx, retry.ConnectConfig(), func() error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("SQL Server ping failed, retrying",
				zap.String("host", cfg.Host),
				logging.ErrorField(err))
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %s", logging.SanitizeError(err))
	}

	logger.Info("Connected to live SQL Server database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema))

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// NewAdapterWithDB wraps an existing *sql.DB. Close closes it.
func NewAdapterWithDB(db *sql.DB, cfg *Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{config: cfg, db: db, logger: logger}
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Dialect returns the T-SQL dialect.
func (a *Adapter) Dialect() models.Dialect {
	return models.DialectMSSQL
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements Introspector at compile time.
var _ datasource.Introspector = (*Adapter)(nil)
