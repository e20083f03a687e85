package schemacache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

func TestPreloadStatus_Initial(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	status := c.PreloadStatus()
	assert.False(t, status.StaticPreloadCompleted)
	assert.False(t, status.DynamicPreloadCompleted)
	assert.Nil(t, status.PreloadTimestamp)
	assert.Empty(t, status.StaticTables)
	assert.False(t, c.IsTablePreloaded("ORDERS").Preloaded())
}

func TestPreloadStatus_Passes(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Hour)
	c.BeginPreload("run-1", 4)
	require.NoError(t, c.Set("ORDERS", desc("ORDERS"), 0, models.ProvenanceStatic))

	c.MarkStaticPreloadComplete([]string{"orders", "CUSTOMERS"})
	clock.Advance(time.Second)
	c.MarkDynamicPreloadComplete([]string{"SALES_STATS"})
	c.RecordPreloadFailure("GONE", errors.New("table not found"))
	c.RecordMissingTable("customers")

	status := c.PreloadStatus()
	assert.Equal(t, "run-1", status.RunID)
	assert.True(t, status.StaticPreloadCompleted)
	assert.True(t, status.DynamicPreloadCompleted)
	assert.Equal(t, []string{"CUSTOMERS", "ORDERS"}, status.StaticTables)
	assert.Equal(t, []string{"SALES_STATS"}, status.DynamicTables)
	assert.Equal(t, map[string]string{"GONE": "table not found"}, status.FailedTables)
	assert.Equal(t, []string{"CUSTOMERS"}, status.MissingTables)
	assert.Equal(t, 4, status.TotalTables)
	assert.Equal(t, 1, status.CacheSize)
	require.NotNil(t, status.PreloadTimestamp)
	assert.Equal(t, clock.Now(), *status.PreloadTimestamp)

	assert.Equal(t, models.TablePreloadState{Static: true}, c.IsTablePreloaded("Orders"))
	assert.Equal(t, models.TablePreloadState{Dynamic: true}, c.IsTablePreloaded("SALES_STATS"))
	assert.False(t, c.IsTablePreloaded("GONE").Preloaded())
}

func TestPreloadStatus_BeginResets(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	c.MarkStaticPreloadComplete([]string{"ORDERS"})
	c.RecordPreloadFailure("X", errors.New("boom"))

	c.BeginPreload("run-2", 1)
	status := c.PreloadStatus()
	assert.Equal(t, "run-2", status.RunID)
	assert.False(t, status.StaticPreloadCompleted)
	assert.Empty(t, status.StaticTables)
	assert.Nil(t, status.FailedTables)
}

func TestPreloadBookkeeping_DoesNotAffectGet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)
	c.MarkStaticPreloadComplete([]string{"ORDERS"})
	_, ok := c.Get("ORDERS")
	assert.False(t, ok)
}
