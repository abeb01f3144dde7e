// Package metrics provides Prometheus metrics for the topology backend (RED + topology + streams).
// Scrapeable at /metrics; dashboards can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gke_connect"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// TopologyBuildDurationSeconds is the builder latency, snapshot listing excluded.
	TopologyBuildDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "topology_build_duration_seconds",
			Help:      "Environment topology build duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)

	// TopologyBuildsTotal counts builds by result (ok, error, canceled).
	TopologyBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_builds_total",
			Help:      "Total number of environment topology builds by result.",
		},
		[]string{"result"},
	)

	// SnapshotListDurationSeconds is the time to list all four kinds of one namespace.
	SnapshotListDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_list_duration_seconds",
			Help:      "Namespace snapshot listing duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	// ClassificationsTotal counts classifier outcomes by category.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of workload classifications by category.",
		},
		[]string{"category"},
	)

	// ClassificationFailuresTotal counts classifier calls that fell back to Unknown.
	ClassificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_failures_total",
			Help:      "Total number of failed classifications by reason (error, panic, timeout, invalid).",
		},
		[]string{"reason"},
	)

	// StreamRebuildsTotal counts rebuilds performed by live topology streams.
	StreamRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_rebuilds_total",
			Help:      "Total number of topology rebuilds performed by live streams.",
		},
	)

	// StreamCoalescedEventsTotal counts pod events folded into an already pending rebuild.
	StreamCoalescedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_coalesced_events_total",
			Help:      "Total number of pod watch events coalesced into a pending rebuild.",
		},
	)

	// StreamsActive is the number of live topology streams.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of active live topology streams.",
		},
	)

	// WebSocketConnectionsActive is current number of WebSocket clients (capacity planning).
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	// TopologyCacheHitsTotal counts cache hits.
	TopologyCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_cache_hits_total",
			Help:      "Total number of topology cache hits.",
		},
	)

	// TopologyCacheMissesTotal counts cache misses.
	TopologyCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_cache_misses_total",
			Help:      "Total number of topology cache misses.",
		},
	)

	// CircuitBreakerState is 0 closed, 1 open, 2 half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Kubernetes API circuit breaker state (0 closed, 1 open, 2 half-open).",
		},
		[]string{"cluster"},
	)

	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions.",
		},
		[]string{"cluster", "from", "to"},
	)

	CircuitBreakerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures_total",
			Help:      "Total number of retryable Kubernetes API failures seen by the circuit breaker.",
		},
		[]string{"cluster"},
	)
)
