// package metrics exposes Prometheus collectors for the caches and upstream clients.
//
// Collectors are registered with the default registry at init via promauto; the server mounts promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts cache reads by result: hit, miss. A miss that shared its flight also counts as coalesced.
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deezify_cache_requests_total",
			Help: "Total number of cache reads",
		},
		[]string{"cache", "result"},
	)

	// CacheLookups counts lookups actually executed (one per coalesced flight).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deezify_cache_lookups_total",
			Help: "Total number of cache lookups executed against upstreams",
		},
		[]string{"cache", "outcome"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deezify_cache_entries",
			Help: "Current number of entries held by a cache",
		},
		[]string{"cache"},
	)

	// UpstreamRequests counts HTTP calls to third-party APIs by outcome (the error kind, or "success").
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deezify_upstream_requests_total",
			Help: "Total number of requests sent to upstream APIs",
		},
		[]string{"upstream", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deezify_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deezify_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)

	// PlaylistRecomputes counts full derivations by reason: miss, snapshot_changed, forced.
	PlaylistRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deezify_playlist_recomputes_total",
			Help: "Total number of derived playlist recomputations",
		},
		[]string{"reason"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deezify_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"route", "status"},
	)
)
