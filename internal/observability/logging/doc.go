// Package logging provides structured logging utilities with per-scout-run
// file fanout, built on the standard library's log/slog package.
//
// Key features:
//   - JSON and text output formats
//   - Scout/run-id propagation
//   - Per-run log files under logs/scouts/<name>/<timestamp>.log
//   - Configurable log levels
//
// Example usage:
//
//	import "scoutengine/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("scout engine started", slog.String("version", "1.0"))
//	}
//
//	func runOneScout(scoutName string) {
//	    runID := time.Now().UTC().Format("20060102_150405")
//	    runLog, logger, _ := logging.OpenRunLog(slog.Default(), "logs/scouts", scoutName, runID)
//	    defer runLog.Close()
//	    logger.Info("run started")
//	}
package logging
