package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned by AcquirePIDLock when the lock file names a
// process that is still alive. Callers are expected to refuse to start.
var ErrAlreadyRunning = errors.New("another instance is already running")

// PIDLock is a held scheduler lock file. Release it on shutdown; a crashed
// process leaves the file behind, which the next AcquirePIDLock reclaims
// after probing that the recorded pid is dead.
type PIDLock struct {
	path string
	pid  int
}

// AcquirePIDLock takes the single-instance lock at path. If the file exists
// and its pid is alive, ErrAlreadyRunning is returned (wrapped with the
// offending pid). A stale file — pid present but process dead, or contents
// unparsable — is reclaimed in place.
func AcquirePIDLock(path string) (*PIDLock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("pid lock: mkdir: %w", err)
		}
	}

	if data, err := os.ReadFile(path); err == nil {
		if pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil {
			if processAlive(pid) {
				return nil, fmt.Errorf("pid lock %s held by pid %d: %w", path, pid, ErrAlreadyRunning)
			}
		}
		// Stale or garbage: fall through and overwrite.
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("pid lock: write: %w", err)
	}
	return &PIDLock{path: path, pid: pid}, nil
}

// Release removes the lock file, but only if it still records this
// process's pid — a reclaim by a later instance must not be clobbered.
func (l *PIDLock) Release() error {
	if l == nil {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pid lock: release: %w", err)
	}
	if pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && pid != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pid lock: release: %w", err)
	}
	return nil
}

// processAlive probes pid with signal 0 (POSIX liveness check, no signal
// actually delivered). EPERM means the process exists but belongs to
// another user, which still counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
