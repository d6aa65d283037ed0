package scout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scoutengine/internal/agent"
	"scoutengine/internal/dedup"
	"scoutengine/internal/domain/entity"
	"scoutengine/internal/sourceadapter"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeInvoker is a scripted stand-in for *agent.Runtime: one response per
// call, in order, so a test can drive the select/write/discover sequence
// deterministically without a real provider.
type fakeInvoker struct {
	responses []json.RawMessage
	errs      []error
	calls     []agent.InvokeRequest
}

func (f *fakeInvoker) Invoke(_ context.Context, req agent.InvokeRequest) (json.RawMessage, error) {
	i := len(f.calls)
	f.calls = append(f.calls, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return nil, err
}

func itemsJSON(t *testing.T, items ...map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	return raw
}

// fakeScoutRepo implements repository.ScoutRepository with just enough
// behaviour for the Executor: TouchLastFiredAt recording and GetByName for
// meta-scout child resolution.
type fakeScoutRepo struct {
	byName       map[string]*entity.Scout
	touchedIDs   []int64
	touchedTimes []time.Time
}

func newFakeScoutRepo() *fakeScoutRepo {
	return &fakeScoutRepo{byName: make(map[string]*entity.Scout)}
}

func (r *fakeScoutRepo) Get(_ context.Context, id int64) (*entity.Scout, error) {
	for _, s := range r.byName {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}
func (r *fakeScoutRepo) GetByName(_ context.Context, name string) (*entity.Scout, error) {
	return r.byName[name], nil
}
func (r *fakeScoutRepo) List(_ context.Context) ([]*entity.Scout, error)          { return nil, nil }
func (r *fakeScoutRepo) ListScheduled(_ context.Context) ([]*entity.Scout, error) { return nil, nil }
func (r *fakeScoutRepo) Create(_ context.Context, _ *entity.Scout) error          { return nil }
func (r *fakeScoutRepo) Update(_ context.Context, _ *entity.Scout) error          { return nil }
func (r *fakeScoutRepo) Delete(_ context.Context, _ int64) error                  { return nil }
func (r *fakeScoutRepo) TouchLastFiredAt(_ context.Context, id int64, t time.Time) error {
	r.touchedIDs = append(r.touchedIDs, id)
	r.touchedTimes = append(r.touchedTimes, t)
	return nil
}

type fakeDraftRepo struct {
	created []*entity.Draft
}

func (r *fakeDraftRepo) Get(_ context.Context, _ int64) (*entity.Draft, error) { return nil, nil }
func (r *fakeDraftRepo) Create(_ context.Context, d *entity.Draft) error {
	d.ID = int64(len(r.created) + 1)
	r.created = append(r.created, d)
	return nil
}
func (r *fakeDraftRepo) ListPendingReview(_ context.Context) ([]*entity.Draft, error) {
	return nil, nil
}
func (r *fakeDraftRepo) Surface(_ context.Context, _ int64) (bool, error) { return false, nil }
func (r *fakeDraftRepo) Update(_ context.Context, _ *entity.Draft) error  { return nil }

type fakeFingerprintRepo struct {
	byHash map[string]*entity.ContentFingerprint
}

func newFakeFingerprintRepo() *fakeFingerprintRepo {
	return &fakeFingerprintRepo{byHash: make(map[string]*entity.ContentFingerprint)}
}
func (f *fakeFingerprintRepo) FindByHash(_ context.Context, hash string) (*entity.ContentFingerprint, error) {
	return f.byHash[hash], nil
}
func (f *fakeFingerprintRepo) ListWithEmbeddings(_ context.Context) ([]*entity.ContentFingerprint, error) {
	return nil, nil
}
func (f *fakeFingerprintRepo) Create(_ context.Context, fp *entity.ContentFingerprint) error {
	f.byHash[fp.Hash] = fp
	return nil
}
func (f *fakeFingerprintRepo) InitVectorIndex(_ context.Context, _ int) (bool, error) {
	return false, nil
}
func (f *fakeFingerprintRepo) IndexVector(_ context.Context, _ int64, _ []float32) error { return nil }
func (f *fakeFingerprintRepo) MaxSimilarity(_ context.Context, _ []float32) (float64, error) {
	return 0, nil
}

func newTestExecutor(t *testing.T, inv *fakeInvoker, adapters ...sourceadapter.Adapter) (*Executor, *fakeScoutRepo, *fakeDraftRepo) {
	t.Helper()
	scoutRepo := newFakeScoutRepo()
	draftRepo := &fakeDraftRepo{}
	store := dedup.NewStore(newFakeFingerprintRepo(), nil, false)
	registry := sourceadapter.NewRegistry(adapters...)
	return &Executor{
		scoutRepo:  scoutRepo,
		draftRepo:  draftRepo,
		dedupStore: store,
		registry:   registry,
		runtime:    inv,
		imageGen:   NoopImageGenerator{},
		logDir:     t.TempDir(),
		logger:     discardLogger(),
	}, scoutRepo, draftRepo
}

type fakeRSSAdapter struct {
	calls int
	err   error
}

func (f *fakeRSSAdapter) Kind() entity.ScoutKind { return entity.ScoutKindRSS }
func (f *fakeRSSAdapter) Fetch(_ context.Context, _ map[string]any, _ int) ([]entity.Item, error) {
	f.calls++
	return nil, f.err
}

func TestRun_ScoutingIntentEmptyDiscoveryProducesNoDraftNoError(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{itemsJSON(t)}}
	e, scoutRepo, draftRepo := newTestExecutor(t, inv, &fakeRSSAdapter{})

	sc := &entity.Scout{
		ID: 1, Name: "empty-feed", Kind: entity.ScoutKindRSS, Intent: entity.IntentScouting,
		ConfigJSON: `{"tools":["rss"],"feeds":["https://example.com/feed"],"max_retries":0}`,
	}
	scoutRepo.byName[sc.Name] = sc

	draft, err := e.Run(context.Background(), sc, Override{})
	require.NoError(t, err)
	require.Nil(t, draft)
	require.Empty(t, draftRepo.created)
	require.Len(t, scoutRepo.touchedIDs, 1)
	require.Equal(t, sc.ID, scoutRepo.touchedIDs[0])
}

func TestRun_ScoutingIntentProducesNotifyOnlyDraft(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{
		itemsJSON(t, map[string]any{"title": "A new release", "url": "https://example.com/a", "summary": "details"}),
	}}
	e, scoutRepo, draftRepo := newTestExecutor(t, inv, &fakeRSSAdapter{})

	sc := &entity.Scout{
		ID: 2, Name: "release-watch", Kind: entity.ScoutKindRSS, Intent: entity.IntentScouting,
		ConfigJSON: `{"tools":["rss"],"feeds":["https://example.com/feed"]}`,
	}
	scoutRepo.byName[sc.Name] = sc

	draft, err := e.Run(context.Background(), sc, Override{})
	require.NoError(t, err)
	require.NotNil(t, draft)
	require.Equal(t, entity.NotifyOnlyPlatform, draft.Platform)
	require.Equal(t, entity.DraftPendingReview, draft.Status)
	require.Contains(t, draft.Content, "A new release")
	require.Len(t, draftRepo.created, 1)
}

func TestRun_GenerationIntentSelectsAndWritesDraft(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{
		itemsJSON(t,
			map[string]any{"title": "First", "url": "https://example.com/1", "summary": "one"},
			map[string]any{"title": "Second", "url": "https://example.com/2", "summary": "two"},
		),
		json.RawMessage(`2`),
		json.RawMessage(`"A punchy post about Second"`),
	}}
	e, scoutRepo, draftRepo := newTestExecutor(t, inv, &fakeRSSAdapter{})

	sc := &entity.Scout{
		ID: 3, Name: "poster", Kind: entity.ScoutKindRSS, Intent: entity.IntentGeneration,
		Platforms:  []string{"mastodon"},
		ConfigJSON: `{"tools":["rss"],"feeds":["https://example.com/feed"]}`,
	}
	scoutRepo.byName[sc.Name] = sc

	draft, err := e.Run(context.Background(), sc, Override{})
	require.NoError(t, err)
	require.NotNil(t, draft)
	require.Equal(t, "mastodon", draft.Platform)
	require.Equal(t, "A punchy post about Second", draft.Content)
	require.Len(t, draftRepo.created, 1)
	require.Len(t, inv.calls, 3)
}

func TestDiscoverWithRetry_RedditRotatesSortOnEmptyResult(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{
		itemsJSON(t),
		itemsJSON(t),
		itemsJSON(t, map[string]any{"title": "Found on third try", "url": "https://example.com/x", "summary": "s"}),
	}}
	e, scoutRepo, _ := newTestExecutor(t, inv, &fakeRSSAdapter{})

	sc := &entity.Scout{
		ID: 4, Name: "subreddit-watch", Kind: entity.ScoutKindReddit, Intent: entity.IntentScouting,
		ConfigJSON: `{"tools":["reddit"],"subreddits":["golang"],"max_retries":2}`,
	}
	scoutRepo.byName[sc.Name] = sc
	cfg, err := ParseConfig(sc.ConfigJSON)
	require.NoError(t, err)

	items, err := e.discoverWithRetry(context.Background(), sc, cfg, discardLogger())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Found on third try", items[0].Title)

	// first call: default "hot"; each retry advances the rotation once.
	require.Contains(t, inv.calls[0].Goal, "Sort by hot")
	require.Contains(t, inv.calls[1].Goal, "Sort by new")
	require.Contains(t, inv.calls[2].Goal, "Sort by top")
}

func TestDiscoverWithRetry_HTTPKindNeverRetries(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{itemsJSON(t)}}
	e, scoutRepo, _ := newTestExecutor(t, inv)

	sc := &entity.Scout{
		ID: 5, Name: "page-watch", Kind: entity.ScoutKindHTTP, Intent: entity.IntentScouting,
		ConfigJSON: `{"tools":["http_request"],"url":"https://example.com","max_retries":3}`,
	}
	scoutRepo.byName[sc.Name] = sc
	cfg, err := ParseConfig(sc.ConfigJSON)
	require.NoError(t, err)

	items, err := e.discoverWithRetry(context.Background(), sc, cfg, discardLogger())
	require.NoError(t, err)
	require.Empty(t, items)
	require.Len(t, inv.calls, 1) // no retry attempted despite max_retries: 3
}

func TestDiscoverWithRetry_StructuredOutputFailureAbandonsRetriesImmediately(t *testing.T) {
	inv := &fakeInvoker{responses: []json.RawMessage{json.RawMessage(`not valid items json`)}}
	e, scoutRepo, _ := newTestExecutor(t, inv, &fakeRSSAdapter{})

	sc := &entity.Scout{
		ID: 6, Name: "broken-schema", Kind: entity.ScoutKindRSS, Intent: entity.IntentScouting,
		ConfigJSON: `{"tools":["rss"],"feeds":["https://example.com/feed"],"max_retries":5}`,
	}
	scoutRepo.byName[sc.Name] = sc
	cfg, err := ParseConfig(sc.ConfigJSON)
	require.NoError(t, err)

	_, err = e.discoverWithRetry(context.Background(), sc, cfg, discardLogger())
	require.Error(t, err)
	var sof *entity.StructuredOutputFailure
	require.ErrorAs(t, err, &sof)
	require.Len(t, inv.calls, 1)
}

func TestMetaScoutSkipsUnknownAndSelfReferencingChild(t *testing.T) {
	inv := &fakeInvoker{}
	e, scoutRepo, _ := newTestExecutor(t, inv)

	meta := &entity.Scout{ID: 7, Name: "meta-one", Kind: entity.ScoutKindMeta, Intent: entity.IntentScouting}
	scoutRepo.byName[meta.Name] = meta

	cfg := RawConfig{"child_scouts": []any{"meta-one", "does-not-exist"}}
	tools := e.buildMetaTools(context.Background(), cfg, map[int64]bool{meta.ID: true}, 0)
	require.Empty(t, tools)
}
