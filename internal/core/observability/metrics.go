// Package observability registers and updates Prometheus metrics for the
// discovery layer.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of calls to external collaborators in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_results_total",
			Help: "Query cache lookups by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	resolverPathTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_path_total",
			Help: "Resolved queries by kind and source path taken.",
		},
		[]string{"kind", "path"},
	)

	resolverFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_failures_total",
			Help: "Queries where primary and fallback both failed.",
		},
		[]string{"kind"},
	)

	geocodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Geocoding attempts by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Coarse feed/map invalidations by trigger.",
		},
		[]string{"trigger"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncCacheResult records a query cache lookup; outcome is hit, miss, or
// join (a caller attached to an in-flight fetch).
func IncCacheResult(kind, outcome string) {
	cacheResultsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncResolverPath(kind, path string) {
	resolverPathTotal.WithLabelValues(kind, path).Inc()
}

func IncResolverFailure(kind string) {
	resolverFailuresTotal.WithLabelValues(kind).Inc()
}

func IncGeocode(outcome string) {
	geocodeTotal.WithLabelValues(outcome).Inc()
}

func IncInvalidation(trigger string) {
	invalidationsTotal.WithLabelValues(trigger).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
