// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Scout run metrics (run count by status, duration, retries)
//   - Draft metrics (created, posted, rejected)
//   - Deduplication metrics (similarity checks by hit or miss)
//   - Agent invocation metrics (count by provider and status, duration)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint served by cmd/scoutd.
//
// Example usage:
//
//	import (
//	    "scoutengine/internal/domain/entity"
//	    "scoutengine/internal/observability/metrics"
//	)
//
//	func runScout(name string) {
//	    start := time.Now()
//	    // ... run scout ...
//	    metrics.RecordScoutRun(name, entity.ScoutKindRSS, "success", time.Since(start))
//	    metrics.RecordDraftEmitted(entity.IntentScouting, entity.NotifyOnlyPlatform)
//	}
package metrics
