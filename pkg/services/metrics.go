package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schema_resolutions_total",
		Help: "Schema resolutions by provenance and outcome.",
	}, []string{"provenance", "outcome"})

	liveFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "schema_live_fetch_duration_seconds",
		Help:    "Duration of live schema introspection calls.",
		Buckets: prometheus.DefBuckets,
	})

	preloadRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schema_preload_runs_total",
		Help: "Preload runs by result.",
	}, []string{"result"})
)
