package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scoutengine/internal/agent"
	"scoutengine/internal/domain/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeInvoker struct {
	response json.RawMessage
	err      error
	calls    int
}

func (f *fakeInvoker) Invoke(_ context.Context, _ agent.InvokeRequest) (json.RawMessage, error) {
	f.calls++
	return f.response, f.err
}

type fakeScoutRepo struct {
	updated []*entity.Scout
}

func (r *fakeScoutRepo) Get(_ context.Context, _ int64) (*entity.Scout, error) { return nil, nil }
func (r *fakeScoutRepo) GetByName(_ context.Context, _ string) (*entity.Scout, error) {
	return nil, nil
}
func (r *fakeScoutRepo) List(_ context.Context) ([]*entity.Scout, error)          { return nil, nil }
func (r *fakeScoutRepo) ListScheduled(_ context.Context) ([]*entity.Scout, error) { return nil, nil }
func (r *fakeScoutRepo) Create(_ context.Context, _ *entity.Scout) error          { return nil }
func (r *fakeScoutRepo) Update(_ context.Context, sc *entity.Scout) error {
	r.updated = append(r.updated, sc)
	return nil
}
func (r *fakeScoutRepo) Delete(_ context.Context, _ int64) error { return nil }
func (r *fakeScoutRepo) TouchLastFiredAt(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

type fakeFeedbackRepo struct {
	created []*entity.Feedback
}

func (r *fakeFeedbackRepo) Create(_ context.Context, fb *entity.Feedback) error {
	fb.ID = int64(len(r.created) + 1)
	r.created = append(r.created, fb)
	return nil
}
func (r *fakeFeedbackRepo) ListByScout(_ context.Context, _ int64) ([]*entity.Feedback, error) {
	return nil, nil
}

type fakeCalibrationRepo struct {
	created []*entity.Calibration
}

func (r *fakeCalibrationRepo) Create(_ context.Context, c *entity.Calibration) error {
	c.ID = int64(len(r.created) + 1)
	r.created = append(r.created, c)
	return nil
}
func (r *fakeCalibrationRepo) CountByScout(_ context.Context, _ int64) (int, error) {
	return len(r.created), nil
}

func newTestService(inv *fakeInvoker) (*Service, *fakeScoutRepo, *fakeFeedbackRepo, *fakeCalibrationRepo) {
	scoutRepo := &fakeScoutRepo{}
	feedbackRepo := &fakeFeedbackRepo{}
	calibrationRepo := &fakeCalibrationRepo{}
	svc := NewService(scoutRepo, feedbackRepo, calibrationRepo, inv, discardLogger())
	return svc, scoutRepo, feedbackRepo, calibrationRepo
}

func TestRecord_JournalsOneRow(t *testing.T) {
	svc, _, feedbackRepo, _ := newTestService(&fakeInvoker{})

	err := svc.Record(context.Background(), 7, "https://example.com/a", entity.FeedbackRefinement, "make it shorter")
	require.NoError(t, err)
	require.Len(t, feedbackRepo.created, 1)
	require.Equal(t, entity.FeedbackRefinement, feedbackRepo.created[0].Action)
	require.Equal(t, "make it shorter", feedbackRepo.created[0].Note)
}

func TestRecordRefinement_RewritesInstruction(t *testing.T) {
	inv := &fakeInvoker{response: json.RawMessage(`"Cover Go releases, and keep posts under two sentences."`)}
	svc, scoutRepo, _, calibrationRepo := newTestService(inv)

	sc := &entity.Scout{ID: 7, Name: "go-watch", Kind: entity.ScoutKindRSS, Instruction: "Cover Go releases."}
	err := svc.RecordRefinement(context.Background(), sc, "https://example.com/a", "draft text", "shorter please")
	require.NoError(t, err)

	require.Len(t, calibrationRepo.created, 1)
	require.Equal(t, "draft text", calibrationRepo.created[0].GeneratedText)
	require.Equal(t, "Cover Go releases, and keep posts under two sentences.", sc.Instruction)
	require.Len(t, scoutRepo.updated, 1)
}

func TestRecordRefinement_KeepsInstructionOnRewriteFailure(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("provider down")}
	svc, scoutRepo, _, calibrationRepo := newTestService(inv)

	sc := &entity.Scout{ID: 7, Name: "go-watch", Kind: entity.ScoutKindRSS, Instruction: "Cover Go releases."}
	err := svc.RecordRefinement(context.Background(), sc, "https://example.com/a", "draft text", "shorter please")
	require.NoError(t, err) // rewrite failure is silent, the calibration row still lands

	require.Len(t, calibrationRepo.created, 1)
	require.Equal(t, "Cover Go releases.", sc.Instruction)
	require.Empty(t, scoutRepo.updated)
	require.Equal(t, 1, inv.calls)
}

func TestRecordRefinement_SkipsRewriteWhenInstructionEmpty(t *testing.T) {
	inv := &fakeInvoker{response: json.RawMessage(`"anything"`)}
	svc, _, _, _ := newTestService(inv)

	sc := &entity.Scout{ID: 7, Name: "go-watch", Kind: entity.ScoutKindRSS}
	err := svc.RecordRefinement(context.Background(), sc, "", "draft", "feedback")
	require.NoError(t, err)
	require.Zero(t, inv.calls)
}

func TestCalibrationCount(t *testing.T) {
	svc, _, _, calibrationRepo := newTestService(&fakeInvoker{})
	calibrationRepo.created = append(calibrationRepo.created, &entity.Calibration{}, &entity.Calibration{})

	n, err := svc.CalibrationCount(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
