package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// RunLog is an open per-scout-run log file. Close it when the run ends.
// Grounded on original_source's run_scout attaching a logging.FileHandler to
// the strands logger for the duration of one run (SPEC_FULL.md §4.E).
type RunLog struct {
	file *os.File
}

// Close releases the underlying file handle. Safe to call on a nil RunLog.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// OpenRunLog creates logs/scouts/<name>/<runID>.log and returns a logger that
// writes every record as JSON to both stdout and the new file, plus the
// *RunLog to close at run end. base is returned only when opening fails. runID is expected to already
// be a filesystem-safe timestamp (YYYYMMDD_HHMMSS).
func OpenRunLog(base *slog.Logger, logDir, scoutName, runID string) (*RunLog, *slog.Logger, error) {
	dir := filepath.Join(logDir, scoutName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, base, fmt.Errorf("OpenRunLog: mkdir: %w", err)
	}

	path := filepath.Join(dir, runID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, base, fmt.Errorf("OpenRunLog: open: %w", err)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := WithScoutRun(slog.New(handler), scoutName, runID)
	return &RunLog{file: f}, logger, nil
}
