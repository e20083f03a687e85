package services

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/workerpool"
)

// preloadPlan splits the configured preload set into the static pass
// (whitelisted tables) and the dynamic pass (everything else).
func (r *resolver) preloadPlan() (static, dynamic []string) {
	cs := r.store.Current()

	if len(r.cfg.PreloadTiers) > 0 {
		static = cs.TablesByImportance(r.cfg.PreloadTiers...)
	} else {
		static = cs.Tables()
	}

	for _, t := range r.cfg.PreloadTables {
		key := models.NormalizeTableName(t)
		if key == "" {
			continue
		}
		if _, ok := cs.Whitelisted(key); ok {
			if !slices.Contains(static, key) {
				static = append(static, key)
			}
			continue
		}
		if !slices.Contains(dynamic, key) {
			dynamic = append(dynamic, key)
		}
	}
	slices.Sort(static)
	slices.Sort(dynamic)
	return static, dynamic
}

// Preload validates the whitelist against the live database, then resolves the
// static and dynamic preload sets with bounded concurrency. It returns only
// after every table has either resolved or had its failure recorded.
func (r *resolver) Preload(ctx context.Context) models.PreloadStatus {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("preload_run", runID))
	start := time.Now()

	static, dynamic := r.preloadPlan()
	r.cache.BeginPreload(runID, len(static)+len(dynamic))

	logger.Info("Starting schema preload",
		zap.Int("static_tables", len(static)),
		zap.Int("dynamic_tables", len(dynamic)),
		zap.Bool("strict_mode", r.cfg.StrictMode))

	if r.cfg.ValidateWhitelist && r.introspector != nil {
		r.validateWhitelist(ctx, logger)
	}

	staticOK := r.preloadPass(ctx, logger, "static", static)
	r.cache.MarkStaticPreloadComplete(staticOK)

	dynamicOK := r.preloadPass(ctx, logger, "dynamic", dynamic)
	r.cache.MarkDynamicPreloadComplete(dynamicOK)

	status := r.cache.PreloadStatus()
	result := "complete"
	if len(status.FailedTables) > 0 {
		result = "partial"
	}
	preloadRuns.WithLabelValues(result).Inc()

	logger.Info("Schema preload finished",
		zap.String("result", result),
		zap.Int("loaded", len(staticOK)+len(dynamicOK)),
		zap.Int("failed", len(status.FailedTables)),
		zap.Int("missing", len(status.MissingTables)),
		zap.Duration("elapsed", time.Since(start)))
	return status
}

// preloadPass resolves tables concurrently and returns those that succeeded.
// A failure is recorded and logged; it never stops the rest of the pass.
func (r *resolver) preloadPass(ctx context.Context, logger *zap.Logger, pass string, tables []string) []string {
	if len(tables) == 0 {
		return nil
	}

	items := make([]workerpool.WorkItem[*models.TableDescriptor], len(tables))
	for i, table := range tables {
		items[i] = workerpool.WorkItem[*models.TableDescriptor]{
			ID: table,
			Execute: func(ctx context.Context) (*models.TableDescriptor, error) {
				return r.Resolve(ctx, table)
			},
		}
	}

	results := workerpool.Process(ctx, r.pool, items, func(completed, total int) {
		logger.Debug("Preload progress",
			zap.String("pass", pass),
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	var loaded []string
	for _, res := range results {
		if res.Err != nil {
			r.cache.RecordPreloadFailure(res.ID, res.Err)
			logger.Warn("Failed to preload table",
				zap.String("pass", pass),
				zap.String("table", res.ID),
				logging.ErrorField(res.Err))
			continue
		}
		loaded = append(loaded, res.ID)
	}
	slices.Sort(loaded)
	return loaded
}

// validateWhitelist checks every whitelisted table against the live database.
// Missing tables are recorded but stay resolvable from static configuration.
// An introspection error counts the table as present.
func (r *resolver) validateWhitelist(ctx context.Context, logger *zap.Logger) {
	tables := r.store.Current().Tables()
	items := make([]workerpool.WorkItem[bool], len(tables))
	for i, table := range tables {
		items[i] = workerpool.WorkItem[bool]{
			ID: table,
			Execute: func(ctx context.Context) (bool, error) {
				ctx, cancel := context.WithTimeout(ctx, r.cfg.LiveTimeout)
				defer cancel()
				return r.introspector.TableExists(ctx, table)
			},
		}
	}

	missing := 0
	for _, res := range workerpool.Process(ctx, r.pool, items, nil) {
		if res.Err != nil {
			logger.Debug("Could not validate whitelisted table; assuming present",
				zap.String("table", res.ID),
				logging.ErrorField(res.Err))
			continue
		}
		if !res.Result {
			missing++
			r.cache.RecordMissingTable(res.ID)
			logger.Warn("Whitelisted table not found in live database", zap.String("table", res.ID))
		}
	}
	logger.Info("Whitelist validated against live database",
		zap.Int("tables", len(tables)),
		zap.Int("missing", missing))
}
