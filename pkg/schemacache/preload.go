package schemacache

import (
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

// preloadTracker is bookkeeping only. It never affects what Get returns.
type preloadTracker struct {
	mu  sync.Mutex
	now func() time.Time

	runID         string
	staticDone    bool
	dynamicDone   bool
	staticTables  map[string]bool
	dynamicTables map[string]bool
	failed        map[string]string
	missing       map[string]bool
	total         int
	completedAt   *time.Time
}

// BeginPreload resets bookkeeping for a new preload run of total tables.
func (c *Cache) BeginPreload(runID string, total int) {
	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.staticDone = false
	p.dynamicDone = false
	p.staticTables = make(map[string]bool)
	p.dynamicTables = make(map[string]bool)
	p.failed = make(map[string]string)
	p.missing = make(map[string]bool)
	p.total = total
	p.completedAt = nil
}

// ResetPreload clears preload bookkeeping, for when the cached tables it
// describes are gone.
func (c *Cache) ResetPreload() {
	c.BeginPreload("", 0)
}

// MarkStaticPreloadComplete records tables loaded from static configuration.
func (c *Cache) MarkStaticPreloadComplete(tables []string) {
	c.markPreload(tables, true)
}

// MarkDynamicPreloadComplete records tables loaded from the live database.
func (c *Cache) MarkDynamicPreloadComplete(tables []string) {
	c.markPreload(tables, false)
}

func (c *Cache) markPreload(tables []string, static bool) {
	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staticTables == nil {
		p.staticTables = make(map[string]bool)
		p.dynamicTables = make(map[string]bool)
	}
	target := p.dynamicTables
	if static {
		target = p.staticTables
		p.staticDone = true
	} else {
		p.dynamicDone = true
	}
	for _, t := range tables {
		target[models.NormalizeTableName(t)] = true
	}
	now := p.now()
	p.completedAt = &now

	pass := "dynamic"
	if static {
		pass = "static"
	}
	preloadTables.WithLabelValues(pass).Set(float64(len(target)))
	c.logger.Debug("Preload pass complete", zap.String("pass", pass), zap.Int("tables", len(tables)))
}

// RecordPreloadFailure records a table whose preload failed.
func (c *Cache) RecordPreloadFailure(table string, err error) {
	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed == nil {
		p.failed = make(map[string]string)
	}
	p.failed[models.NormalizeTableName(table)] = err.Error()
}

// RecordMissingTable records a whitelisted table the live database does not have.
func (c *Cache) RecordMissingTable(table string) {
	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing == nil {
		p.missing = make(map[string]bool)
	}
	p.missing[models.NormalizeTableName(table)] = true
}

// PreloadStatus returns a snapshot of preload bookkeeping.
func (c *Cache) PreloadStatus() models.PreloadStatus {
	size := c.Len()

	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()

	status := models.PreloadStatus{
		RunID:                   p.runID,
		StaticPreloadCompleted:  p.staticDone,
		DynamicPreloadCompleted: p.dynamicDone,
		StaticTables:            sortedKeys(p.staticTables),
		DynamicTables:           sortedKeys(p.dynamicTables),
		MissingTables:           sortedKeys(p.missing),
		TotalTables:             p.total,
		CacheSize:               size,
	}
	if len(p.failed) > 0 {
		status.FailedTables = maps.Clone(p.failed)
	}
	if p.completedAt != nil {
		ts := *p.completedAt
		status.PreloadTimestamp = &ts
	}
	if len(status.MissingTables) == 0 {
		status.MissingTables = nil
	}
	return status
}

// IsTablePreloaded reports which preload passes loaded table.
func (c *Cache) IsTablePreloaded(table string) models.TablePreloadState {
	key := models.NormalizeTableName(table)
	p := &c.preload
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.TablePreloadState{
		Static:  p.staticTables[key],
		Dynamic: p.dynamicTables[key],
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
