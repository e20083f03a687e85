package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/retry"
)

// Adapter provides PostgreSQL connectivity and live schema introspection.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool // false when the pool was injected (tests)
	logger    *zap.Logger
}

// NewAdapter opens a connection pool, retrying transient dial failures.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %s", logging.SanitizeError(err))
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := retry.DoWithResult(ctx, retry.ConnectConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("Postgres ping failed, retrying",
				zap.String("host", cfg.Host),
				logging.ErrorField(err))
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
	}

	logger.Info("Connected to live PostgreSQL database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema))

	return &Adapter{config: cfg, pool: pool, ownedPool: true, logger: logger}, nil
}

// NewAdapterWithPool wraps an existing pool. The pool is not closed by Close.
func NewAdapterWithPool(pool *pgxpool.Pool, cfg *Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{config: cfg, pool: pool, logger: logger}
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Correct database name (to prevent introspecting a wrong/default database)
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	// PostgreSQL database names are case-sensitive, but compare case-insensitively
	// to match MSSQL behavior and handle common configuration issues
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() models.Dialect {
	return models.DialectPostgreSQL
}

// Close releases the pool if the adapter created it.
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ensure Adapter implements Introspector at compile time.
var _ datasource.Introspector = (*Adapter)(nil)
