// Package metrics provides the centralized Prometheus metrics registry for
// the feature engine and its surrounding services.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecordsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "records_ingested_total",
		Help:      "Total number of participation records ingested",
	})
	RecordsDeduplicatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "records_deduplicated_total",
		Help:      "Total number of duplicate (race, horse) rows dropped at ingestion",
	})
	SourceFilesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "source_files_skipped_total",
		Help:      "Total number of source files skipped due to parse failures",
	})
	ParseFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "parse_failures_total",
		Help:      "Total number of field parse failures recovered with sentinels",
	}, []string{"field"})
	FitRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "fit_runs_total",
		Help:      "Total number of feature fitting runs",
	})
	TransformRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "transform_runs_total",
		Help:      "Total number of transform replays against a frozen bundle",
	})
	ModelRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keiba_engine",
		Name:      "model_requests_total",
		Help:      "Total number of requests to the model service",
	}, []string{"operation", "status"})
)

// Gauge metrics
var (
	HistoryCacheRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keiba_engine",
		Name:      "history_cache_records",
		Help:      "Number of historical records held by the history cache",
	})
	HistoryCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keiba_engine",
		Name:      "history_cache_hit_ratio",
		Help:      "Hit ratio of memoized history cache lookups",
	})
	ArtifactBundleAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keiba_engine",
		Name:      "artifact_bundle_age_seconds",
		Help:      "Age of the loaded artifact bundle in seconds",
	})
)

// Histogram metrics
var (
	FitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keiba_engine",
		Name:      "fit_duration_seconds",
		Help:      "Duration of feature fitting runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
	TransformDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keiba_engine",
		Name:      "transform_duration_seconds",
		Help:      "Duration of transform replays in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(
			RecordsIngestedTotal,
			RecordsDeduplicatedTotal,
			SourceFilesSkippedTotal,
			ParseFailuresTotal,
			FitRunsTotal,
			TransformRunsTotal,
			ModelRequestsTotal,
			HistoryCacheRecords,
			HistoryCacheHitRatio,
			ArtifactBundleAgeSeconds,
			FitDuration,
			TransformDuration,
		)
	})
	return registry
}

// Handler returns an HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}
