package schemacache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schema_cache_hits_total",
		Help: "Total number of schema cache hits.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schema_cache_misses_total",
		Help: "Total number of schema cache misses, including expired entries.",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schema_cache_evictions_total",
		Help: "Total number of entries evicted to make room for new ones.",
	})

	cacheExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schema_cache_expirations_total",
		Help: "Total number of entries removed because their TTL elapsed.",
	})

	cacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "schema_cache_entries",
		Help: "Current number of entries in the schema cache.",
	})

	preloadTables = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schema_preload_tables",
		Help: "Number of tables loaded by the last preload, by pass.",
	}, []string{"pass"})
)
