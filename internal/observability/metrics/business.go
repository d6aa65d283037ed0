package metrics

import (
	"time"

	"scoutengine/internal/domain/entity"
)

// RecordScoutRun records the outcome and duration of one Executor run.
func RecordScoutRun(scoutName string, kind entity.ScoutKind, status string, duration time.Duration) {
	ScoutRunsTotal.WithLabelValues(scoutName, string(kind), status).Inc()
	ScoutRunDuration.WithLabelValues(scoutName, string(kind)).Observe(duration.Seconds())
}

// RecordScoutRetry records one retry attempt consumed by the Executor.
func RecordScoutRetry(scoutName string, kind entity.ScoutKind) {
	ScoutRetriesTotal.WithLabelValues(scoutName, string(kind)).Inc()
}

// RecordDraftEmitted records one Draft created by the Executor.
func RecordDraftEmitted(intent entity.ScoutIntent, platform string) {
	DraftsEmittedTotal.WithLabelValues(string(intent), platform).Inc()
}

// RecordDraftTransition records one Draft state-machine transition applied
// by the Review Bus.
func RecordDraftTransition(to entity.DraftStatus) {
	DraftTransitionsTotal.WithLabelValues(string(to)).Inc()
}

// RecordPublishFailure records a Publisher error surfaced during approve.
func RecordPublishFailure(platform string) {
	PublishFailuresTotal.WithLabelValues(platform).Inc()
}

// RecordDedupCheck records the outcome of one Dedup Store similarity check.
func RecordDedupCheck(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DedupChecksTotal.WithLabelValues(result).Inc()
}

// RecordAgentInvocation records one Agent Runtime call's provider, outcome,
// and duration.
func RecordAgentInvocation(provider, status string, duration time.Duration) {
	AgentInvocationsTotal.WithLabelValues(provider, status).Inc()
	AgentInvocationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_scouts", "insert_draft").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
