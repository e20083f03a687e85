package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemacache"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemaconfig"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/workerpool"
)

// SchemaResolver resolves table descriptors for consumers of the engine.
type SchemaResolver interface {
	// Resolve returns the merged descriptor for table, from cache when possible.
	// Fails with AccessDenied (strict mode, not whitelisted) or SchemaNotFound.
	Resolve(ctx context.Context, table string, opts ...ResolveOption) (*models.TableDescriptor, error)

	// ResolveLive skips the cache read, queries the live database, and caches
	// the result with provenance live.
	ResolveLive(ctx context.Context, table string, opts ...ResolveOption) (*models.TableDescriptor, error)

	// Invalidate drops cache entries matching a table name, "*" or a glob.
	Invalidate(pattern string) (int, error)

	// Reload re-reads the configuration directory, clears the cache, and
	// re-runs preload when preloading is enabled.
	Reload(ctx context.Context) error

	// Preload resolves the configured table set concurrently and waits for all of it.
	Preload(ctx context.Context) models.PreloadStatus

	CacheStats() models.CacheStats
	PreloadStatus() models.PreloadStatus

	// Dependencies returns the outgoing foreign keys of table.
	Dependencies(ctx context.Context, table string) ([]models.TableDependency, error)

	// ListTables returns the whitelist sorted by table name.
	ListTables() []models.TableSummary

	// Summary describes the loaded configuration and cache.
	Summary() models.SchemaSummary

	// RenderTimePattern substitutes column into a named time pattern.
	RenderTimePattern(name, dialect, column string) (string, error)

	StrictMode() bool
}

// ResolverConfig holds resolver behavior settings.
type ResolverConfig struct {
	StrictMode  bool
	EnableCache bool
	// LiveTimeout bounds each live introspection call.
	LiveTimeout time.Duration
	// LiveRatePerSecond limits live introspection calls; 0 means unlimited.
	LiveRatePerSecond float64
	// MaxConcurrent bounds preload parallelism.
	MaxConcurrent int

	// PreloadOnStartup also makes Reload preload again after the swap.
	PreloadOnStartup  bool
	PreloadTiers      []models.ImportanceTier
	PreloadTables     []string
	ValidateWhitelist bool
}

// DefaultResolverConfig returns the documented defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		StrictMode:        true,
		EnableCache:       true,
		LiveTimeout:       10 * time.Second,
		LiveRatePerSecond: 20,
		MaxConcurrent:     5,
		PreloadOnStartup:  true,
		PreloadTiers:      []models.ImportanceTier{models.ImportanceCritical, models.ImportanceHigh},
		ValidateWhitelist: true,
	}
}

// ResolveOption customizes a single resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	ttl time.Duration
}

// WithTTL overrides the cache TTL for the entry written by this resolution.
func WithTTL(ttl time.Duration) ResolveOption {
	return func(o *resolveOptions) {
		o.ttl = ttl
	}
}

type resolver struct {
	store        *schemaconfig.Store
	cache        *schemacache.Cache
	introspector datasource.Introspector
	limiter      *rate.Limiter
	pool         *workerpool.Pool
	cfg          ResolverConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewResolver wires the resolver. cache is required even when caching is
// disabled because it owns preload bookkeeping. introspector may be nil when no
// live database is configured.
func NewResolver(
	store *schemaconfig.Store,
	cache *schemacache.Cache,
	introspector datasource.Introspector,
	cfg ResolverConfig,
	logger *zap.Logger,
) SchemaResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LiveTimeout <= 0 {
		cfg.LiveTimeout = DefaultResolverConfig().LiveTimeout
	}
	r := &resolver{
		store:        store,
		cache:        cache,
		introspector: introspector,
		pool:         workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrent}, logger),
		cfg:          cfg,
		logger:       logger.Named("resolver"),
		now:          time.Now,
	}
	if cfg.LiveRatePerSecond > 0 {
		burst := int(cfg.LiveRatePerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.LiveRatePerSecond), burst)
	}

	// Reset bumps the cache generation, so writes merged from the replaced
	// snapshot are dropped instead of outliving the reload.
	store.OnReload(func(*schemaconfig.ConfigSet) {
		n := cache.Reset()
		cache.ResetPreload()
		r.logger.Info("Schema configuration reloaded; cache cleared", zap.Int("invalidated", n))
	})
	return r
}

func (r *resolver) StrictMode() bool {
	return r.cfg.StrictMode
}

// Resolve runs CacheCheck, ConfigMerge, then StrictReject or LiveFallback, then CacheWrite.
func (r *resolver) Resolve(ctx context.Context, table string, opts ...ResolveOption) (*models.TableDescriptor, error) {
	o := applyOptions(opts)
	key := models.NormalizeTableName(table)
	if key == "" {
		return nil, &apperrors.SchemaNotFoundError{Table: table, Err: errors.New("table name is empty")}
	}

	// CacheCheck
	if r.cfg.EnableCache {
		if desc, ok := r.cache.Get(key); ok {
			resolutions.WithLabelValues(desc.Provenance.String(), "cache_hit").Inc()
			return desc, nil
		}
	}

	// The generation is read before the snapshot: a reload swaps the snapshot
	// first and resets the cache after, so a stale merge always sees a newer generation.
	gen := r.cache.Generation()
	cs := r.store.Current()

	// ConfigMerge
	if _, ok := cs.Whitelisted(key); ok {
		live := r.liveColumnsForWhitelisted(ctx, key)
		desc := cs.Descriptor(key, live)
		return r.write(gen, key, desc, models.ProvenanceStatic, o.ttl), nil
	}

	// StrictReject
	if r.cfg.StrictMode {
		resolutions.WithLabelValues("", "access_denied").Inc()
		r.logger.Warn("Rejected non-whitelisted table in strict mode", zap.String("table", key))
		return nil, &apperrors.AccessDeniedError{Table: key}
	}

	// LiveFallback
	desc, err := r.liveDescriptor(ctx, cs, key)
	if err != nil {
		resolutions.WithLabelValues("", "not_found").Inc()
		return nil, err
	}
	return r.write(gen, key, desc, models.ProvenanceDynamic, o.ttl), nil
}

func (r *resolver) ResolveLive(ctx context.Context, table string, opts ...ResolveOption) (*models.TableDescriptor, error) {
	o := applyOptions(opts)
	key := models.NormalizeTableName(table)
	if key == "" {
		return nil, &apperrors.SchemaNotFoundError{Table: table, Err: errors.New("table name is empty")}
	}

	gen := r.cache.Generation()
	cs := r.store.Current()
	if _, ok := cs.Whitelisted(key); !ok && r.cfg.StrictMode {
		resolutions.WithLabelValues("", "access_denied").Inc()
		r.logger.Warn("Rejected non-whitelisted live lookup in strict mode", zap.String("table", key))
		return nil, &apperrors.AccessDeniedError{Table: key}
	}

	desc, err := r.liveDescriptor(ctx, cs, key)
	if err != nil {
		resolutions.WithLabelValues("", "not_found").Inc()
		return nil, err
	}
	return r.write(gen, key, desc, models.ProvenanceLive, o.ttl), nil
}

// write is the CacheWrite state. The descriptor is returned even when the
// cache refuses it; a capacity failure is an internal fault, not a lookup failure.
func (r *resolver) write(gen uint64, key string, desc *models.TableDescriptor, p models.Provenance, ttl time.Duration) *models.TableDescriptor {
	desc.Provenance = p
	desc.ResolvedAt = r.now()
	resolutions.WithLabelValues(p.String(), "resolved").Inc()

	if !r.cfg.EnableCache {
		return desc
	}
	stored, err := r.cache.SetIfGeneration(gen, key, desc, ttl, p)
	if err != nil {
		r.logger.Error("Failed to cache resolved schema",
			zap.String("table", key),
			zap.String("provenance", p.String()),
			zap.Error(err))
		return desc
	}
	if !stored {
		r.logger.Debug("Skipping cache write for descriptor merged from a replaced configuration",
			zap.String("table", key))
	}
	return desc
}

func (r *resolver) Invalidate(pattern string) (int, error) {
	n, err := r.cache.Invalidate(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalidate %q: %w", pattern, err)
	}
	r.logger.Info("Invalidated cache entries", zap.String("pattern", pattern), zap.Int("count", n))
	return n, nil
}

func (r *resolver) Reload(ctx context.Context) error {
	if err := r.store.Reload(); err != nil {
		return err
	}
	if r.cfg.PreloadOnStartup {
		r.Preload(ctx)
	}
	return nil
}

func (r *resolver) CacheStats() models.CacheStats {
	stats := r.cache.Stats()
	stats.Enabled = r.cfg.EnableCache
	return stats
}

func (r *resolver) PreloadStatus() models.PreloadStatus {
	return r.cache.PreloadStatus()
}

func applyOptions(opts []ResolveOption) resolveOptions {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
