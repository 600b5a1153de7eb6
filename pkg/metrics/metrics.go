package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check metrics
var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_checks_total",
			Help: "Total number of scripts checked",
		},
		[]string{"source", "result"},
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sievelint_check_duration_seconds",
			Help:    "Duration of script checks in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"source"},
	)

	ScriptSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sievelint_script_size_bytes",
			Help:    "Size of checked scripts in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	DiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_diagnostics_total",
			Help: "Total number of diagnostics reported, by production",
		},
		[]string{"production"},
	)

	ExtensionsUsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_extensions_used_total",
			Help: "Total number of checked scripts using each extension",
		},
		[]string{"extension"},
	)

	CrossCheckDisagreementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sievelint_cross_check_disagreements_total",
			Help: "Scripts on which go-sieve and the checker disagree about validity",
		},
	)

	RejectedScriptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_rejected_scripts_total",
			Help: "Scripts refused before checking",
		},
		[]string{"reason"},
	)
)

// Result cache metrics
var (
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_cache_operations_total",
			Help: "Total number of result cache operations",
		},
		[]string{"operation", "result"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sievelint_cache_entries",
			Help: "Number of results held in memory",
		},
	)
)

// HTTP API metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sievelint_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sievelint_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// ObserveCheck records one finished check. source is "cli" or "http".
func ObserveCheck(source string, valid, cached bool, size int, d time.Duration) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	if cached {
		result += "_cached"
	}
	ChecksTotal.WithLabelValues(source, result).Inc()
	CheckDuration.WithLabelValues(source).Observe(d.Seconds())
	ScriptSizeBytes.Observe(float64(size))
}

// ObserveCacheLookup counts a result cache lookup.
func ObserveCacheLookup(hit bool) {
	if hit {
		CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	} else {
		CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
	}
}
