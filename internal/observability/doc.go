// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Per-scout-run structured logging with file fanout
//   - Prometheus metrics for monitoring scout/draft/dedup activity
//   - OpenTelemetry spans around Agent Runtime invocations
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry span instrumentation for LLM calls
//
// Example usage:
//
//	import (
//	    "scoutengine/internal/domain/entity"
//	    "scoutengine/internal/observability/logging"
//	    "scoutengine/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("scout engine started")
//
//	    metrics.RecordScoutRun("hn-scout", entity.ScoutKindRSS, "success", 2*time.Second)
//	}
package observability
