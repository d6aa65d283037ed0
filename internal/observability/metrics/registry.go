// Package metrics provides centralized Prometheus metrics for the scout engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scout run metrics track Executor invocations end to end.
var (
	// ScoutRunsTotal counts Executor runs by scout name, kind, and outcome.
	ScoutRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_runs_total",
			Help: "Total number of scout executor runs",
		},
		[]string{"scout", "kind", "status"}, // status: success, empty, failed
	)

	// ScoutRunDuration measures one full Executor run, including retries.
	ScoutRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_run_duration_seconds",
			Help:    "Time taken for one scout executor run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"scout", "kind"},
	)

	// ScoutRetriesTotal counts retry attempts consumed per run.
	ScoutRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_retries_total",
			Help: "Total number of scout executor retry attempts",
		},
		[]string{"scout", "kind"},
	)
)

// Draft metrics track what the Executor and Review Bus produce.
var (
	// DraftsEmittedTotal counts Drafts created by intent and platform.
	DraftsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drafts_emitted_total",
			Help: "Total number of drafts emitted by the scout executor",
		},
		[]string{"intent", "platform"},
	)

	// DraftTransitionsTotal counts Draft state-machine transitions applied
	// by the Review Bus.
	DraftTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_transitions_total",
			Help: "Total number of draft state transitions",
		},
		[]string{"to_status"},
	)

	// PublishFailuresTotal counts Publisher errors surfaced during approve.
	PublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_failures_total",
			Help: "Total number of publisher failures on draft approval",
		},
		[]string{"platform"},
	)
)

// Dedup metrics track the Deduplication Store's gate.
var (
	// DedupChecksTotal counts IsSimilar calls by outcome (hit/miss).
	DedupChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_checks_total",
			Help: "Total number of dedup store similarity checks",
		},
		[]string{"result"}, // result: hit, miss
	)
)

// Agent invocation metrics track Agent Runtime calls.
var (
	// AgentInvocationsTotal counts runtime invocations by provider and outcome.
	AgentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_invocations_total",
			Help: "Total number of agent runtime invocations",
		},
		[]string{"provider", "status"}, // status: success, structured_output_failure, error
	)

	// AgentInvocationDuration measures one runtime call's wall-clock time.
	AgentInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_invocation_duration_seconds",
			Help:    "Time taken for one agent runtime invocation",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"provider"},
	)
)

// Database metrics track the embedded sqlite store.
var (
	// DBQueryDuration measures database query duration.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections.
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordOperationDuration records the duration of a named database operation.
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
