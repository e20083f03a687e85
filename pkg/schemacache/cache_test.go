package schemacache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func desc(name string) *models.TableDescriptor {
	return &models.TableDescriptor{
		TableName: name,
		Columns:   []models.ColumnDescriptor{{Name: name + "_ID", SemanticType: models.SemanticIdentifier}},
	}
}

func newTestCache(t *testing.T, maxSize int, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return New(maxSize, ttl, nil, WithClock(clock.Now)), clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)

	_, ok := c.Get("ORDERS")
	assert.False(t, ok)

	require.NoError(t, c.Set("orders", desc("ORDERS"), 0, models.ProvenanceStatic))

	got, ok := c.Get("ORDERS")
	require.True(t, ok)
	assert.Equal(t, "ORDERS", got.TableName)
	assert.Equal(t, models.ProvenanceStatic, got.Provenance)

	info, ok := c.Entry("Orders")
	require.True(t, ok)
	assert.Equal(t, int64(1), info.AccessCount)
	assert.Equal(t, time.Hour, info.TTL)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
	assert.Equal(t, 60.0, stats.TTLMinutes)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	original := desc("ORDERS")
	require.NoError(t, c.Set("ORDERS", original, 0, models.ProvenanceStatic))

	// Mutating the input after Set does not reach the cache.
	original.Columns[0].Name = "CHANGED"

	got, _ := c.Get("ORDERS")
	got.Columns[0].SemanticType = models.SemanticMoney

	again, _ := c.Get("ORDERS")
	assert.Equal(t, "ORDERS_ID", again.Columns[0].Name)
	assert.Equal(t, models.SemanticIdentifier, again.Columns[0].SemanticType)
}

func TestCache_SetValidation(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	assert.Error(t, c.Set("ORDERS", nil, 0, models.ProvenanceStatic))
	assert.Error(t, c.Set("ORDERS", desc("ORDERS"), 0, models.Provenance("guessed")))
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("ORDERS", desc("ORDERS"), 10*time.Minute, models.ProvenanceDynamic))

	clock.Advance(10 * time.Minute)
	_, ok := c.Get("ORDERS")
	assert.True(t, ok, "entry at exactly its TTL is still valid")

	clock.Advance(time.Second)
	_, ok = c.Get("ORDERS")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")

	// Behaves like a cold miss afterwards.
	_, ok = c.Get("ORDERS")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestCache_AccessDoesNotExtendTTL(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("ORDERS", desc("ORDERS"), time.Minute, models.ProvenanceStatic))

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		_, ok := c.Get("ORDERS")
		require.True(t, ok)
	}
	clock.Advance(20 * time.Second)
	_, ok := c.Get("ORDERS")
	assert.False(t, ok)
}

func TestCache_EvictsColdEntryNotHotOne(t *testing.T) {
	c, clock := newTestCache(t, 2, time.Hour)

	require.NoError(t, c.Set("A", desc("A"), 0, models.ProvenanceStatic))
	clock.Advance(time.Second)
	require.NoError(t, c.Set("B", desc("B"), 0, models.ProvenanceStatic))
	clock.Advance(time.Second)
	_, ok := c.Get("A")
	require.True(t, ok)
	clock.Advance(time.Second)
	require.NoError(t, c.Set("C", desc("C"), 0, models.ProvenanceStatic))

	assert.Equal(t, []string{"A", "C"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_RepeatedAccessSurvivesLonger(t *testing.T) {
	c, clock := newTestCache(t, 2, 24*time.Hour)

	require.NoError(t, c.Set("HOT", desc("HOT"), 0, models.ProvenanceStatic))
	require.NoError(t, c.Set("COLD", desc("COLD"), 0, models.ProvenanceStatic))
	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		_, ok := c.Get("HOT")
		require.True(t, ok)
	}

	// HOT: 1800s idle - 10*60 = 1200; COLD: 2400s idle - 0 = 2400.
	clock.Advance(30 * time.Minute)
	require.NoError(t, c.Set("NEW", desc("NEW"), 0, models.ProvenanceStatic))
	assert.ElementsMatch(t, []string{"HOT", "NEW"}, c.Keys())
}

func TestCache_ColdFormerlyHotEntryEventuallyLoses(t *testing.T) {
	c, clock := newTestCache(t, 2, 24*time.Hour)

	require.NoError(t, c.Set("OLD", desc("OLD"), 0, models.ProvenanceStatic))
	for i := 0; i < 3; i++ {
		_, _ = c.Get("OLD")
	}
	clock.Advance(time.Hour)
	require.NoError(t, c.Set("FRESH", desc("FRESH"), 0, models.ProvenanceStatic))
	clock.Advance(time.Minute)

	// OLD: 3660s idle - 3*60 = 3480; FRESH: 60s idle - 0 = 60.
	require.NoError(t, c.Set("NEWEST", desc("NEWEST"), 0, models.ProvenanceStatic))
	assert.ElementsMatch(t, []string{"FRESH", "NEWEST"}, c.Keys())
}

func TestCache_TieBreaksOnOldestCreation(t *testing.T) {
	c, clock := newTestCache(t, 2, time.Hour)
	// Zero recency weight makes every untouched entry score 0.
	c.recencyWeight = 0

	require.NoError(t, c.Set("FIRST", desc("FIRST"), 0, models.ProvenanceStatic))
	clock.Advance(time.Second)
	require.NoError(t, c.Set("SECOND", desc("SECOND"), 0, models.ProvenanceStatic))
	clock.Advance(time.Second)
	require.NoError(t, c.Set("THIRD", desc("THIRD"), 0, models.ProvenanceStatic))

	assert.Equal(t, []string{"SECOND", "THIRD"}, c.Keys())
}

func TestCache_NeverEvictsNewestBeforeColderOlder(t *testing.T) {
	c, clock := newTestCache(t, 3, time.Hour)
	for _, k := range []string{"A", "B", "C"} {
		require.NoError(t, c.Set(k, desc(k), 0, models.ProvenanceStatic))
		clock.Advance(time.Second)
	}
	require.NoError(t, c.Set("D", desc("D"), 0, models.ProvenanceStatic))
	assert.Equal(t, []string{"B", "C", "D"}, c.Keys())
}

func TestCache_FullCachePrefersExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t, 2, time.Hour)
	require.NoError(t, c.Set("SHORT", desc("SHORT"), time.Minute, models.ProvenanceStatic))
	require.NoError(t, c.Set("LONG", desc("LONG"), 0, models.ProvenanceStatic))
	_, _ = c.Get("SHORT")
	_, _ = c.Get("SHORT")

	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Set("NEW", desc("NEW"), 0, models.ProvenanceStatic))

	assert.Equal(t, []string{"LONG", "NEW"}, c.Keys())
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Evictions)
	assert.Equal(t, int64(1), stats.Expirations)
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)
	require.NoError(t, c.Set("A", desc("A"), 0, models.ProvenanceStatic))
	require.NoError(t, c.Set("B", desc("B"), 0, models.ProvenanceStatic))
	require.NoError(t, c.Set("A", desc("A"), 0, models.ProvenanceLive))

	assert.Equal(t, []string{"A", "B"}, c.Keys())
	got, _ := c.Get("A")
	assert.Equal(t, models.ProvenanceLive, got.Provenance)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	for _, k := range []string{"ORDERS", "ORDER_LINES", "CUSTOMERS", "INVOICES"} {
		require.NoError(t, c.Set(k, desc(k), 0, models.ProvenanceStatic))
	}

	n, err := c.Invalidate("customers")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Invalidate("MISSING")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Invalidate("order*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"INVOICES"}, c.Keys())

	n, err = c.Invalidate("*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, c.Len())

	_, err = c.Invalidate("")
	assert.Error(t, err)
}

func TestCache_InvalidateBracketedKey(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("[dbo].[orders]", desc("[DBO].[ORDERS]"), 0, models.ProvenanceDynamic))
	require.NoError(t, c.Set("[SALES", desc("[SALES"), 0, models.ProvenanceDynamic))
	require.NoError(t, c.Set("CUSTOMERS", desc("CUSTOMERS"), 0, models.ProvenanceStatic))

	n, err := c.Invalidate("[DBO].[ORDERS]")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Not a valid glob, but an existing key.
	n, err = c.Invalidate("[sales")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.Invalidate("[SALES")
	assert.Error(t, err)
	assert.Equal(t, []string{"CUSTOMERS"}, c.Keys())
}

func TestCache_ResetDropsWritesFromOlderGeneration(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("ORDERS", desc("ORDERS"), 0, models.ProvenanceStatic))

	gen := c.Generation()
	assert.Equal(t, 1, c.Reset())
	assert.Zero(t, c.Len())
	assert.NotEqual(t, gen, c.Generation())

	stored, err := c.SetIfGeneration(gen, "CUSTOMERS", desc("CUSTOMERS"), 0, models.ProvenanceStatic)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok := c.Get("CUSTOMERS")
	assert.False(t, ok)

	stored, err = c.SetIfGeneration(c.Generation(), "CUSTOMERS", desc("CUSTOMERS"), 0, models.ProvenanceStatic)
	require.NoError(t, err)
	assert.True(t, stored)
	_, ok = c.Get("CUSTOMERS")
	assert.True(t, ok)

	_, err = c.SetIfGeneration(c.Generation(), "ORDERS", nil, 0, models.ProvenanceStatic)
	assert.Error(t, err)
}

func TestCache_PurgeExpired(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("A", desc("A"), time.Minute, models.ProvenanceStatic))
	require.NoError(t, c.Set("B", desc("B"), 0, models.ProvenanceStatic))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, []string{"B"}, c.Keys())
}

func TestCache_StartSweeper(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Hour)
	require.NoError(t, c.Set("A", desc("A"), time.Minute, models.ProvenanceStatic))
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartSweeper(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_CapacityErrorWhenNothingEvictable(t *testing.T) {
	c, _ := newTestCache(t, 1, time.Hour)
	c.maxSize = 0 // simulate a broken invariant
	err := c.Set("A", desc("A"), 0, models.ProvenanceStatic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCacheCapacity))
}

func TestCache_Concurrent(t *testing.T) {
	c := New(50, time.Hour, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("T%d", (g*7+i)%80)
				if _, ok := c.Get(key); !ok {
					assert.NoError(t, c.Set(key, desc(key), 0, models.ProvenanceDynamic))
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
