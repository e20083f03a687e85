// Package schemacache is a bounded in-memory store of resolved table descriptors
// with hybrid frequency/recency eviction, per-entry TTL, and provenance tracking.
package schemacache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

const (
	DefaultMaxSize = 1000
	DefaultTTL     = 60 * time.Minute

	// One access offsets a minute of idleness.
	DefaultRecencyWeight   = 1.0
	DefaultFrequencyWeight = 60.0
)

type entry struct {
	key         string
	desc        *models.TableDescriptor
	provenance  models.Provenance
	accessCount int64
	lastAccess  time.Time
	createdAt   time.Time
	ttl         time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// EntryInfo is read-only metadata about a cached entry.
type EntryInfo struct {
	Key         string            `json:"key"`
	Provenance  models.Provenance `json:"provenance"`
	AccessCount int64             `json:"access_count"`
	LastAccess  time.Time         `json:"last_access"`
	CreatedAt   time.Time         `json:"created_at"`
	TTL         time.Duration     `json:"ttl"`
}

// Cache is safe for concurrent use. All state sits behind one mutex; every
// critical section is a map operation, never I/O.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxSize         int
	defaultTTL      time.Duration
	recencyWeight   float64
	frequencyWeight float64
	now             func() time.Time
	logger          *zap.Logger

	// generation changes on Reset; writes prepared against an older
	// generation are refused by SetIfGeneration.
	generation uint64

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	preload preloadTracker
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for deterministic TTL and recency in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithWeights sets the recency and frequency weights of the eviction score.
func WithWeights(recency, frequency float64) Option {
	return func(c *Cache) {
		c.recencyWeight = recency
		c.frequencyWeight = frequency
	}
}

// New creates a cache holding at most maxSize entries with defaultTTL applied
// when Set is called without an override. Non-positive values fall back to the defaults.
func New(maxSize int, defaultTTL time.Duration, logger *zap.Logger, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		entries:         make(map[string]*entry),
		maxSize:         maxSize,
		defaultTTL:      defaultTTL,
		recencyWeight:   DefaultRecencyWeight,
		frequencyWeight: DefaultFrequencyWeight,
		now:             time.Now,
		logger:          logger.Named("schema-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.preload.now = c.now
	return c
}

// Get returns a copy of the cached descriptor tagged with its provenance.
// Expired entries are removed and reported as a miss. A hit bumps the
// entry's access count and last-access time.
func (c *Cache) Get(key string) (*models.TableDescriptor, bool) {
	key = models.NormalizeTableName(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if ok && e.expired(now) {
		c.removeLocked(key)
		c.expirations++
		cacheExpirations.Inc()
		c.logger.Debug("Cache entry expired", zap.String("table", key), zap.Duration("ttl", e.ttl))
		ok = false
	}
	if !ok {
		c.misses++
		cacheMisses.Inc()
		return nil, false
	}

	e.accessCount++
	e.lastAccess = now
	c.hits++
	cacheHits.Inc()
	c.logger.Debug("Cache hit",
		zap.String("table", key),
		zap.String("provenance", e.provenance.String()),
		zap.Int64("access_count", e.accessCount))
	return e.desc.WithProvenance(e.provenance), true
}

// Set stores a copy of desc under key. ttl <= 0 uses the default TTL.
// When the cache is full the entry with the highest eviction score is removed
// first. Returns an error wrapping apperrors.ErrCacheCapacity only if no slot
// could be freed.
func (c *Cache) Set(key string, desc *models.TableDescriptor, ttl time.Duration, provenance models.Provenance) error {
	key = models.NormalizeTableName(key)
	if err := checkSetArgs(key, desc, provenance); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, desc, ttl, provenance)
}

// Generation identifies the current cache contents. Read it before building a
// descriptor and pass it to SetIfGeneration.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfGeneration is Set that only stores the entry when no Reset happened
// since generation was read. It reports whether the entry was stored.
func (c *Cache) SetIfGeneration(generation uint64, key string, desc *models.TableDescriptor, ttl time.Duration, provenance models.Provenance) (bool, error) {
	key = models.NormalizeTableName(key)
	if err := checkSetArgs(key, desc, provenance); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		c.logger.Debug("Dropping cache write prepared before a reset",
			zap.String("table", key),
			zap.Uint64("generation", generation),
			zap.Uint64("current", c.generation))
		return false, nil
	}
	if err := c.setLocked(key, desc, ttl, provenance); err != nil {
		return false, err
	}
	return true, nil
}

// Reset removes every entry and starts a new generation.
func (c *Cache) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.generation++
	cacheSize.Set(0)
	c.logger.Info("Cache reset", zap.Int("removed", n), zap.Uint64("generation", c.generation))
	return n
}

func checkSetArgs(key string, desc *models.TableDescriptor, provenance models.Provenance) error {
	if desc == nil {
		return fmt.Errorf("schema cache: nil descriptor for %q", key)
	}
	if !provenance.IsValid() {
		return fmt.Errorf("schema cache: invalid provenance %q for %q", provenance, key)
	}
	return nil
}

func (c *Cache) setLocked(key string, desc *models.TableDescriptor, ttl time.Duration, provenance models.Provenance) error {
	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.purgeExpiredLocked(now)
		for len(c.entries) >= c.maxSize {
			victim, ok := c.pickVictimLocked(now)
			if !ok {
				return fmt.Errorf("%w: cannot insert %q (size %d, max %d)",
					apperrors.ErrCacheCapacity, key, len(c.entries), c.maxSize)
			}
			c.logger.Debug("Evicting cache entry",
				zap.String("table", victim.key),
				zap.Int64("access_count", victim.accessCount),
				zap.Duration("idle", now.Sub(victim.lastAccess)))
			c.removeLocked(victim.key)
			c.evictions++
			cacheEvictions.Inc()
		}
	}

	c.entries[key] = &entry{
		key:        key,
		desc:       desc.WithProvenance(provenance),
		provenance: provenance,
		lastAccess: now,
		createdAt:  now,
		ttl:        ttl,
	}
	cacheSize.Set(float64(len(c.entries)))
	c.logger.Debug("Cache set",
		zap.String("table", key),
		zap.String("provenance", provenance.String()),
		zap.Duration("ttl", ttl))
	return nil
}

// score is the eviction priority: higher is evicted first.
func (c *Cache) score(e *entry, now time.Time) float64 {
	idle := now.Sub(e.lastAccess).Seconds()
	return c.recencyWeight*idle - c.frequencyWeight*float64(e.accessCount)
}

func (c *Cache) pickVictimLocked(now time.Time) (*entry, bool) {
	var (
		victim *entry
		best   float64
	)
	for _, e := range c.entries {
		s := c.score(e, now)
		switch {
		case victim == nil, s > best:
			victim, best = e, s
		case s == best && e.createdAt.Before(victim.createdAt):
			victim = e
		case s == best && e.createdAt.Equal(victim.createdAt) && e.key < victim.key:
			victim = e // deterministic for entries created in the same instant
		}
	}
	return victim, victim != nil
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	cacheSize.Set(float64(len(c.entries)))
}

// Invalidate removes entries matching pattern and returns how many were removed.
// pattern is an exact table name, "*" for everything, or a glob such as "ORDER*".
// A key equal to pattern always matches, so bracketed names like "[DBO].[ORDERS]"
// can be removed even though they read as globs. Matching is case-insensitive.
func (c *Cache) Invalidate(pattern string) (int, error) {
	pattern = models.NormalizeTableName(pattern)
	if pattern == "" {
		return 0, fmt.Errorf("schema cache: empty invalidation pattern")
	}

	var (
		match   func(string) bool
		globErr error
	)
	switch {
	case pattern == "*":
		match = func(string) bool { return true }
	case strings.ContainsAny(pattern, "*?[{"):
		g, err := glob.Compile(pattern)
		if err != nil {
			globErr = err
			match = func(k string) bool { return k == pattern }
		} else {
			match = func(k string) bool { return k == pattern || g.Match(k) }
		}
	default:
		match = func(k string) bool { return k == pattern }
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exact := c.entries[pattern]; globErr != nil && !exact {
		return 0, fmt.Errorf("schema cache: invalid pattern %q: %w", pattern, globErr)
	}

	removed := 0
	for k := range c.entries {
		if match(k) {
			c.removeLocked(k)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info("Cache invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))
	}
	return removed, nil
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked(c.now())
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(k)
			n++
		}
	}
	c.expirations += int64(n)
	cacheExpirations.Add(float64(n))
	return n
}

// StartSweeper purges expired entries every interval until ctx is done.
// Lazy expiry on Get does not depend on it.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.PurgeExpired(); n > 0 {
					c.logger.Debug("Swept expired cache entries", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached table names, sorted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry returns metadata for key without counting as an access.
func (c *Cache) Entry(key string) (EntryInfo, bool) {
	key = models.NormalizeTableName(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{
		Key:         e.key,
		Provenance:  e.provenance,
		AccessCount: e.accessCount,
		LastAccess:  e.lastAccess,
		CreatedAt:   e.createdAt,
		TTL:         e.ttl,
	}, true
}

// Stats returns counters since the cache was created.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := models.CacheStats{
		Enabled:     true,
		Size:        len(c.entries),
		MaxSize:     c.maxSize,
		TTLMinutes:  c.defaultTTL.Minutes(),
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// TTL returns the TTL applied when Set gets no override.
func (c *Cache) TTL() time.Duration { return c.defaultTTL }
