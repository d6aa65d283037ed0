// Package scheduler dispatches scout runs on their cron expressions and
// hosts the Review Bus's poll loop, all on one cron runtime per process.
// Grounded on the teacher's cmd/worker/main.go startCronWorker
// (robfig/cron/v3 with an explicit location), generalized from one fixed
// crawl job to one entry per scheduled Scout plus the review poll job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/infra/db"
	"scoutengine/internal/repository"
	"scoutengine/internal/scout"
)

// Runner is the Executor seam: one full scout run.
type Runner interface {
	Run(ctx context.Context, sc *entity.Scout, override scout.Override) (*entity.Draft, error)
}

// ReviewBus is the slice of the Review Bus the scheduler drives: the
// periodic poll, and the direct-publish path for scouts that opted out of
// human review.
type ReviewBus interface {
	PollOnce(ctx context.Context) error
	AutoApprove(ctx context.Context, draftID int64) error
}

// Config tunes one Scheduler.
type Config struct {
	// Timezone interprets every scout's cron expression. Invalid or empty
	// falls back to UTC, matching the teacher's startCronWorker fallback.
	Timezone string
	// PIDPath is the single-instance lock file. Empty disables locking
	// (tests).
	PIDPath string
	// ReviewPollInterval is the Review Bus poll cadence. Defaults to 60s.
	ReviewPollInterval time.Duration
	// RunTimeout bounds one scout run end to end. Defaults to 10m.
	RunTimeout time.Duration
}

// Scheduler owns the process's cron runtime. One logical run per (scout,
// fire-time): a fire that finds the previous run of the same scout still
// in flight is skipped, not queued.
type Scheduler struct {
	cron      *cron.Cron
	scoutRepo repository.ScoutRepository
	runner    Runner
	reviewBus ReviewBus
	cfg       Config
	logger    *slog.Logger

	pidLock *db.PIDLock

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	inRun   map[int64]bool
	started bool

	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

func New(scoutRepo repository.ScoutRepository, runner Runner, reviewBus ReviewBus, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReviewPollInterval <= 0 {
		cfg.ReviewPollInterval = time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			logger.Warn("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		}
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		scoutRepo: scoutRepo,
		runner:    runner,
		reviewBus: reviewBus,
		cfg:       cfg,
		logger:    logger,
		entries:   make(map[int64]cron.EntryID),
		inRun:     make(map[int64]bool),
	}
}

// Start acquires the PID lock, registers one job per scheduled Scout plus
// the review poll job, and starts the cron runtime. A live lock holder
// makes Start fail; callers are expected to exit non-zero.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: already started")
	}

	if s.cfg.PIDPath != "" {
		lock, err := db.AcquirePIDLock(s.cfg.PIDPath)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		s.pidLock = lock
	}

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	scouts, err := s.scoutRepo.ListScheduled(ctx)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("scheduler: load scheduled scouts: %w", err)
	}
	for _, sc := range scouts {
		if err := s.registerLocked(sc); err != nil {
			s.logger.Warn("skipping scout with invalid cron expression",
				slog.String("scout", sc.Name), slog.String("cron", sc.CronExpr), slog.Any("error", err))
		}
	}

	if s.reviewBus != nil {
		spec := fmt.Sprintf("@every %s", s.cfg.ReviewPollInterval)
		if _, err := s.cron.AddFunc(spec, s.pollReview); err != nil {
			s.releaseLock()
			return fmt.Errorf("scheduler: register review poll: %w", err)
		}
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started",
		slog.Int("scheduled_scouts", len(s.entries)),
		slog.Duration("review_poll_interval", s.cfg.ReviewPollInterval))
	return nil
}

// Stop quiesces the scheduler: no new fires, then a cooperative wait for
// in-flight runs. If ctx expires before they finish, the run context is
// cancelled — the Executor checks it between major steps — and the wait
// resumes until the jobs unwind.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("graceful stop deadline reached, cancelling in-flight runs")
		s.cancel()
		<-done
	}

	s.cancel()
	s.releaseLock()
	s.logger.Info("scheduler stopped")
	return nil
}

// Register adds or replaces the cron job for sc. A scout whose expression
// was cleared is simply deregistered. Safe to call while running; the
// daemon calls it after every scout edit.
func (s *Scheduler) Register(sc *entity.Scout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(sc)
}

// Deregister removes the job for a deleted scout.
func (s *Scheduler) Deregister(scoutID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[scoutID]; ok {
		s.cron.Remove(id)
		delete(s.entries, scoutID)
	}
}

func (s *Scheduler) registerLocked(sc *entity.Scout) error {
	if id, ok := s.entries[sc.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, sc.ID)
	}
	if sc.CronExpr == "" {
		return nil
	}

	scoutID := sc.ID
	entryID, err := s.cron.AddFunc(sc.CronExpr, func() { s.fire(scoutID) })
	if err != nil {
		return fmt.Errorf("register scout %s: %w", sc.Name, err)
	}
	s.entries[sc.ID] = entryID
	return nil
}

// fire handles one cron trigger for a scout: skip if a run of the same
// scout is still in flight, re-read the scout (its config may have changed
// since registration), and run the Executor.
func (s *Scheduler) fire(scoutID int64) {
	s.mu.Lock()
	if s.inRun[scoutID] {
		s.mu.Unlock()
		s.logger.Warn("previous run still in flight, skipping fire", slog.Int64("scout_id", scoutID))
		return
	}
	s.inRun[scoutID] = true
	runCtx := s.runCtx
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.inRun, scoutID)
		s.mu.Unlock()
	}()

	fireID := uuid.NewString()
	logger := s.logger.With(slog.Int64("scout_id", scoutID), slog.String("fire_id", fireID))

	ctx, cancel := context.WithTimeout(runCtx, s.cfg.RunTimeout)
	defer cancel()

	sc, err := s.scoutRepo.Get(ctx, scoutID)
	if err != nil {
		logger.Error("failed to re-read scout before run", slog.Any("error", err))
		return
	}
	if sc == nil || sc.CronExpr == "" {
		// Deleted or switched to manual-only between registration and fire.
		s.Deregister(scoutID)
		return
	}

	draft, err := s.runner.Run(ctx, sc, scout.Override{})
	if err != nil {
		logger.Error("scheduled run failed", slog.String("scout", sc.Name), slog.Any("error", err))
		return
	}
	if draft == nil {
		logger.Info("scheduled run produced no draft", slog.String("scout", sc.Name))
		return
	}

	if !sc.ReviewRequired && s.reviewBus != nil {
		if err := s.reviewBus.AutoApprove(ctx, draft.ID); err != nil {
			logger.Error("direct publish failed, draft left for review",
				slog.String("scout", sc.Name), slog.Int64("draft_id", draft.ID), slog.Any("error", err))
		}
		return
	}
	logger.Info("draft parked for review",
		slog.String("scout", sc.Name), slog.Int64("draft_id", draft.ID))
}

// RunAdHoc triggers one manual run on a separate worker goroutine so an
// interactive caller is not blocked, honoring the same per-scout mutual
// exclusion as scheduled fires. The returned channel yields the run's
// result exactly once.
func (s *Scheduler) RunAdHoc(ctx context.Context, sc *entity.Scout, override scout.Override) <-chan AdHocResult {
	out := make(chan AdHocResult, 1)

	s.mu.Lock()
	if s.inRun[sc.ID] {
		s.mu.Unlock()
		out <- AdHocResult{Err: fmt.Errorf("scout %s: a run is already in flight", sc.Name)}
		return out
	}
	s.inRun[sc.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inRun, sc.ID)
			s.mu.Unlock()
		}()
		draft, err := s.runner.Run(ctx, sc, override)
		out <- AdHocResult{Draft: draft, Err: err}
	}()
	return out
}

// AdHocResult is one RunAdHoc outcome.
type AdHocResult struct {
	Draft *entity.Draft
	Err   error
}

// JobStatus describes one registered cron entry for the health endpoint.
type JobStatus struct {
	ScoutID int64     `json:"scout_id"`
	Next    time.Time `json:"next"`
}

// Snapshot lists the registered jobs and their next fire times.
func (s *Scheduler) Snapshot() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.entries))
	for scoutID, entryID := range s.entries {
		out = append(out, JobStatus{ScoutID: scoutID, Next: s.cron.Entry(entryID).Next})
	}
	return out
}

func (s *Scheduler) pollReview() {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.runCtx, s.cfg.ReviewPollInterval)
	defer cancel()
	if err := s.reviewBus.PollOnce(ctx); err != nil {
		s.logger.Error("review poll failed", slog.Any("error", err))
	}
}

func (s *Scheduler) releaseLock() {
	if s.pidLock == nil {
		return
	}
	if err := s.pidLock.Release(); err != nil {
		s.logger.Warn("failed to release pid lock", slog.Any("error", err))
	}
	s.pidLock = nil
}
