package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionResolves tracks session lookups per alias (outcome: hit, miss, error)
	SessionResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsbridge_session_resolves_total",
			Help: "Total number of session resolves",
		},
		[]string{"alias", "outcome"},
	)

	// SessionEvictions tracks evicted sessions (reason: ttl, retry, manual)
	SessionEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsbridge_session_evictions_total",
			Help: "Total number of evicted sessions",
		},
		[]string{"alias", "reason"},
	)

	// SessionRetries tracks operations re-run on a fresh session
	SessionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsbridge_session_retries_total",
			Help: "Total number of operations retried after a stale session",
		},
		[]string{"alias"},
	)

	// SessionsCached tracks the number of live cache entries
	SessionsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsbridge_sessions_cached",
			Help: "Number of sessions currently cached",
		},
	)

	// RemoteRequests tracks HTTP requests to remote instances
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsbridge_remote_requests_total",
			Help: "Total number of remote API requests",
		},
		[]string{"alias", "method", "status"},
	)

	// RemoteLatency tracks remote request latency
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsbridge_remote_latency_seconds",
			Help:    "Remote API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"alias", "method"},
	)

	// BatchOperations tracks batch operations (kind: create, update; outcome: ok, error)
	BatchOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsbridge_batch_operations_total",
			Help: "Total number of batch operations executed",
		},
		[]string{"kind", "outcome"},
	)

	// BatchDuration tracks how long whole batches take
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsbridge_batch_duration_seconds",
			Help:    "Batch execution time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// DBConnectionPoolUsage tracks the usage percentage of the DB connection pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsbridge_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)
