package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/scout"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScoutRepo struct {
	mu     sync.Mutex
	scouts map[int64]*entity.Scout
}

func newFakeScoutRepo(scouts ...*entity.Scout) *fakeScoutRepo {
	r := &fakeScoutRepo{scouts: make(map[int64]*entity.Scout)}
	for _, sc := range scouts {
		r.scouts[sc.ID] = sc
	}
	return r
}

func (r *fakeScoutRepo) Get(_ context.Context, id int64) (*entity.Scout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scouts[id], nil
}
func (r *fakeScoutRepo) GetByName(_ context.Context, _ string) (*entity.Scout, error) {
	return nil, nil
}
func (r *fakeScoutRepo) List(_ context.Context) ([]*entity.Scout, error) { return nil, nil }
func (r *fakeScoutRepo) ListScheduled(_ context.Context) ([]*entity.Scout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Scout
	for _, sc := range r.scouts {
		if sc.CronExpr != "" {
			out = append(out, sc)
		}
	}
	return out, nil
}
func (r *fakeScoutRepo) Create(_ context.Context, _ *entity.Scout) error { return nil }
func (r *fakeScoutRepo) Update(_ context.Context, _ *entity.Scout) error { return nil }
func (r *fakeScoutRepo) Delete(_ context.Context, _ int64) error         { return nil }
func (r *fakeScoutRepo) TouchLastFiredAt(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	draft   *entity.Draft
	err     error
	block   chan struct{} // when non-nil, Run blocks until closed
	started chan struct{} // signalled once per Run entry
}

func (f *fakeRunner) Run(ctx context.Context, _ *entity.Scout, _ scout.Override) (*entity.Draft, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.draft, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBus struct {
	mu           sync.Mutex
	polls        int
	autoApproved []int64
	approveErr   error
}

func (b *fakeBus) PollOnce(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	return nil
}

func (b *fakeBus) AutoApprove(_ context.Context, draftID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoApproved = append(b.autoApproved, draftID)
	return b.approveErr
}

func startedScheduler(t *testing.T, repo *fakeScoutRepo, runner Runner, bus ReviewBus) *Scheduler {
	t.Helper()
	s := New(repo, runner, bus, Config{ReviewPollInterval: time.Hour}, discardLogger())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestStart_RegistersScheduledScoutsOnly(t *testing.T) {
	repo := newFakeScoutRepo(
		&entity.Scout{ID: 1, Name: "hourly", CronExpr: "0 * * * *"},
		&entity.Scout{ID: 2, Name: "manual-only"},
	)
	s := startedScheduler(t, repo, &fakeRunner{}, &fakeBus{})

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, int64(1), snap[0].ScoutID)
	require.False(t, snap[0].Next.IsZero())
}

func TestStart_RefusesSecondInstanceOnLivePIDLock(t *testing.T) {
	pidPath := t.TempDir() + "/scoutd.pid"
	repo := newFakeScoutRepo()

	first := New(repo, &fakeRunner{}, nil, Config{PIDPath: pidPath}, discardLogger())
	require.NoError(t, first.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = first.Stop(ctx)
	}()

	second := New(repo, &fakeRunner{}, nil, Config{PIDPath: pidPath}, discardLogger())
	err := second.Start(context.Background())
	require.Error(t, err)
}

func TestFire_SkipsWhileRunInFlight(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "slow", CronExpr: "* * * * *"}
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	repo := newFakeScoutRepo(sc)
	s := startedScheduler(t, repo, runner, &fakeBus{})

	go s.fire(sc.ID)
	<-runner.started

	// A second fire while the first is blocked must be a no-op.
	s.fire(sc.ID)
	require.Equal(t, 1, runner.callCount())

	close(runner.block)
}

func TestFire_RereadsScoutAndDeregistersWhenGone(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "doomed", CronExpr: "* * * * *"}
	repo := newFakeScoutRepo(sc)
	runner := &fakeRunner{}
	s := startedScheduler(t, repo, runner, &fakeBus{})
	require.Len(t, s.Snapshot(), 1)

	// Deleted between registration and fire.
	repo.mu.Lock()
	delete(repo.scouts, sc.ID)
	repo.mu.Unlock()

	s.fire(sc.ID)
	require.Zero(t, runner.callCount())
	require.Empty(t, s.Snapshot())
}

func TestFire_AutoApprovesWhenReviewNotRequired(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "direct", CronExpr: "* * * * *", ReviewRequired: false}
	repo := newFakeScoutRepo(sc)
	bus := &fakeBus{}
	runner := &fakeRunner{draft: &entity.Draft{ID: 42, Status: entity.DraftPendingReview}}
	s := startedScheduler(t, repo, runner, bus)

	s.fire(sc.ID)
	require.Equal(t, []int64{42}, bus.autoApproved)
}

func TestFire_ParksDraftWhenReviewRequired(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "reviewed", CronExpr: "* * * * *", ReviewRequired: true}
	repo := newFakeScoutRepo(sc)
	bus := &fakeBus{}
	runner := &fakeRunner{draft: &entity.Draft{ID: 42, Status: entity.DraftPendingReview}}
	s := startedScheduler(t, repo, runner, bus)

	s.fire(sc.ID)
	require.Empty(t, bus.autoApproved)
}

func TestRegister_ReplacesPriorJob(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "edited", CronExpr: "0 * * * *"}
	repo := newFakeScoutRepo(sc)
	s := startedScheduler(t, repo, &fakeRunner{}, &fakeBus{})
	require.Len(t, s.Snapshot(), 1)

	sc.CronExpr = "30 2 * * *"
	require.NoError(t, s.Register(sc))
	require.Len(t, s.Snapshot(), 1)

	sc.CronExpr = ""
	require.NoError(t, s.Register(sc))
	require.Empty(t, s.Snapshot())
}

func TestRunAdHoc_RefusesOverlappingRun(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "adhoc"}
	repo := newFakeScoutRepo(sc)
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := startedScheduler(t, repo, runner, &fakeBus{})

	first := s.RunAdHoc(context.Background(), sc, scout.Override{})
	<-runner.started

	second := <-s.RunAdHoc(context.Background(), sc, scout.Override{})
	require.Error(t, second.Err)

	close(runner.block)
	require.NoError(t, (<-first).Err)
}

func TestStop_CancelsBlockedRunCooperatively(t *testing.T) {
	sc := &entity.Scout{ID: 1, Name: "stuck", CronExpr: "* * * * *"}
	repo := newFakeScoutRepo(sc)
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(repo, runner, &fakeBus{}, Config{ReviewPollInterval: time.Hour}, discardLogger())
	require.NoError(t, s.Start(context.Background()))

	go s.fire(sc.ID)
	<-runner.started

	// A 10ms grace period the blocked run cannot meet forces the cooperative-cancel path;
	// the blocked run observes its context and unwinds.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
