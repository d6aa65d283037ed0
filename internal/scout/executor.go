package scout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scoutengine/internal/agent"
	"scoutengine/internal/dedup"
	"scoutengine/internal/domain/entity"
	"scoutengine/internal/observability/logging"
	"scoutengine/internal/observability/metrics"
	"scoutengine/internal/repository"
	"scoutengine/internal/sourceadapter"
)

// defaultFetchLimit is the "at most limit items" ceiling spec.md §4.E.4
// applies to one discovery pass's decoded result, independent of whatever
// smaller per-tool-call limit the bound adapter tools use internally.
const defaultFetchLimit = 15

// invoker is the narrow seam onto *agent.Runtime the Executor actually
// calls. Kept as an interface (rather than the concrete type) purely so
// tests can substitute a fake — every real caller wires a *agent.Runtime.
type invoker interface {
	Invoke(ctx context.Context, req agent.InvokeRequest) (json.RawMessage, error)
}

// Executor is the Scout Executor of spec.md §4.E: it turns one Scout's
// declarative configuration into zero or one Draft per run. Grounded on
// original_source's core/scouts.py run_scout / select_best_content /
// generate_draft sequence, orchestrated in the style of the teacher's
// internal/usecase/fetch/service.go — a Service struct wiring repositories,
// adapters, and one reliability-wrapped external client behind a single
// Run entry point.
type Executor struct {
	scoutRepo  repository.ScoutRepository
	draftRepo  repository.DraftRepository
	dedupStore *dedup.Store
	registry   *sourceadapter.Registry
	runtime    invoker
	imageGen   ImageGenerator
	logDir     string
	logger     *slog.Logger
}

// NewExecutor constructs an Executor. imageGen may be nil, in which case it
// defaults to NoopImageGenerator{}.
func NewExecutor(
	scoutRepo repository.ScoutRepository,
	draftRepo repository.DraftRepository,
	dedupStore *dedup.Store,
	registry *sourceadapter.Registry,
	runtime *agent.Runtime,
	imageGen ImageGenerator,
	logDir string,
	logger *slog.Logger,
) *Executor {
	if imageGen == nil {
		imageGen = NoopImageGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		scoutRepo:  scoutRepo,
		draftRepo:  draftRepo,
		dedupStore: dedupStore,
		registry:   registry,
		runtime:    runtime,
		imageGen:   imageGen,
		logDir:     logDir,
		logger:     logger,
	}
}

// Override carries the ad-hoc-run overlay spec.md §4.E.1 describes:
// cmd/scoutctl's manual-trigger command can supply a one-off query and/or
// config overlay without mutating the persisted Scout.
type Override struct {
	Query  string
	Config RawConfig
}

// Run executes one full pass for sc: merge config, bind tools, synthesize
// the goal, discover, retry on an empty result, and — for generation
// intent — select the best item and write a platform draft. It always
// touches the Scout's last-fired-at timestamp before returning, whether
// the run succeeded, found nothing, or failed (spec.md §4.E.9), using a
// cancellation-detached context so a caller's ctx being done on the way
// out doesn't also lose the timestamp update.
func (e *Executor) Run(ctx context.Context, sc *entity.Scout, override Override) (*entity.Draft, error) {
	runID := time.Now().UTC().Format("20060102_150405")
	runLog, logger, err := logging.OpenRunLog(e.logger, e.logDir, sc.Name, runID)
	if err != nil {
		logger = e.logger
		logger.Warn("failed to open per-run log file", slog.Any("error", err))
	}
	defer runLog.Close()
	logger = logging.WithFields(logger, map[string]interface{}{
		"kind": string(sc.Kind), "intent": string(sc.Intent),
	})

	start := time.Now()
	status := "success"
	defer func() {
		metrics.RecordScoutRun(sc.Name, sc.Kind, status, time.Since(start))
		touchCtx := context.WithoutCancel(ctx)
		if touchErr := e.scoutRepo.TouchLastFiredAt(touchCtx, sc.ID, time.Now().UTC()); touchErr != nil {
			logger.Error("failed to update scout last-fired-at", slog.Any("error", touchErr))
		}
	}()

	baseCfg, err := ParseConfig(sc.ConfigJSON)
	if err != nil {
		status = "failed"
		return nil, fmt.Errorf("scout %s: %w", sc.Name, err)
	}
	cfg := Merge(baseCfg, override.Config)
	if override.Query != "" {
		cfg = Merge(cfg, RawConfig{"query": override.Query})
	}

	items, err := e.discoverWithRetry(ctx, sc, cfg, logger)
	if err != nil {
		status = "failed"
		logger.Error("scout discovery failed", slog.Any("error", err))
		return nil, err
	}
	logger.Info("discovery complete", slog.Int("items", len(items)))
	if len(items) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		status = "cancelled"
		return nil, err
	}

	switch sc.Intent {
	case entity.IntentScouting:
		d := &entity.Draft{
			ScoutID:   sc.ID,
			Content:   formatReport(sc, items),
			Platform:  entity.NotifyOnlyPlatform,
			Status:    entity.DraftPendingReview,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.draftRepo.Create(ctx, d); err != nil {
			status = "failed"
			return nil, fmt.Errorf("scout %s: create draft: %w", sc.Name, err)
		}
		metrics.RecordDraftEmitted(sc.Intent, d.Platform)
		return d, nil

	case entity.IntentGeneration:
		d, err := e.generateDraft(ctx, sc, cfg, items, logger)
		if err != nil {
			status = "failed"
			return nil, err
		}
		return d, nil

	default:
		status = "failed"
		return nil, fmt.Errorf("scout %s: unsupported intent %q", sc.Name, sc.Intent)
	}
}

// discoverWithRetry runs discover in a loop, perturbing cfg via nextAttempt
// whenever a pass yields nothing kept, up to cfg's max_retries (spec.md
// §4.E.6). A StructuredOutputFailure ends the loop immediately regardless
// of attempt count, matching nextAttempt's own unconditional termination
// for that error kind.
func (e *Executor) discoverWithRetry(ctx context.Context, sc *entity.Scout, cfg RawConfig, logger *slog.Logger) ([]entity.Item, error) {
	maxRetries := cfg.MaxRetries()
	visited := map[int64]bool{sc.ID: true}

	currentCfg := cfg
	hint := ""
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := e.discover(ctx, sc, currentCfg, hint, visited, 0)
		switch {
		case err != nil:
			var sof *entity.StructuredOutputFailure
			if errors.As(err, &sof) {
				return nil, err
			}
			lastErr = err
		case len(items) > 0:
			return items, nil
		default:
			lastErr = nil
		}

		if attempt >= maxRetries {
			return nil, lastErr
		}

		pert := nextAttempt(sc.Kind, currentCfg, attempt+1, lastErr)
		if !pert.retryOK {
			return nil, lastErr
		}

		metrics.RecordScoutRetry(sc.Name, sc.Kind)
		logger.Info("retrying scout discovery",
			slog.Int("attempt", attempt+1), slog.String("hint", pert.hint))
		currentCfg = pert.cfg
		hint = pert.hint
	}
}

// discover performs one non-retrying fetch-then-dedup pass: bind the tool
// set, synthesize the goal, invoke the Agent Runtime, decode the declared
// items schema, and filter the result through the Dedup Store. hint is a
// retry-derived goal-text suffix, empty on the first attempt. visited and
// depth guard meta-scout recursion (see meta.go).
func (e *Executor) discover(ctx context.Context, sc *entity.Scout, cfg RawConfig, hint string, visited map[int64]bool, depth int) ([]entity.Item, error) {
	tools := e.buildAdapterTools(cfg.Tools(), cfg)
	if sc.Kind == entity.ScoutKindMeta {
		for name, fn := range e.buildMetaTools(ctx, cfg, visited, depth) {
			tools[name] = fn
		}
	}
	if cfg.ImageGeneration() {
		tools["generate_image_stability"] = e.imageTool()
	}

	goal := synthesizeGoal(sc.Kind, cfg, hint)
	if sc.Instruction != "" {
		goal = goal + "\n\n" + sc.Instruction
	}

	raw, err := e.runtime.Invoke(ctx, agent.InvokeRequest{
		ScoutName:        sc.Name,
		Kind:             string(sc.Kind),
		Goal:             goal,
		Tools:            tools,
		ResultSchemaText: agent.ItemsSchemaText,
	})
	if err != nil {
		return nil, err
	}

	items, err := agent.DecodeItems(raw)
	if err != nil {
		return nil, &entity.StructuredOutputFailure{Raw: string(raw), ValidationErr: err}
	}
	if len(items) > defaultFetchLimit {
		items = items[:defaultFetchLimit]
	}

	kept := make([]entity.Item, 0, len(items))
	for _, it := range items {
		text := it.DedupText()
		similar, err := e.dedupStore.IsSimilar(ctx, text, dedup.DefaultThreshold)
		if err != nil {
			return nil, fmt.Errorf("dedup check: %w", err)
		}
		metrics.RecordDedupCheck(similar)
		if similar {
			continue
		}
		if err := e.dedupStore.Add(ctx, text, entity.ProvenanceRetrieved); err != nil {
			return nil, fmt.Errorf("dedup add: %w", err)
		}
		kept = append(kept, it)
	}
	return kept, nil
}

// synthesizeGoal builds the kind-specific goal sentence spec.md §4.E.3
// describes, with hint (a retry perturbation's goal-text suffix) appended
// when present. Grounded on original_source's per-kind prompt assembly in
// core/scouts.py's run_scout.
func synthesizeGoal(kind entity.ScoutKind, cfg RawConfig, hint string) string {
	var goal string
	switch kind {
	case entity.ScoutKindRSS:
		rc := cfg.RSS()
		goal = fmt.Sprintf(
			"Find interesting content from the following RSS feeds:\n%s\n\nUse the 'rss' tool to read these feeds.",
			strings.Join(rc.Feeds, "\n"))

	case entity.ScoutKindReddit:
		rc := cfg.Reddit()
		goal = fmt.Sprintf(
			"Find interesting content from the following subreddits: %s. Sort by %s. Use the 'reddit' tool.",
			strings.Join(rc.Subreddits, ", "), rc.Sort)

	case entity.ScoutKindSearch:
		query := cfg.Search().Query
		if query == "" {
			query = "latest news"
		}
		goal = fmt.Sprintf("Find interesting content about: %q. Use the 'google_search' tool.", query)

	case entity.ScoutKindArxiv:
		ac := cfg.Arxiv()
		if ac.DaysBack > 0 {
			goal = fmt.Sprintf(
				"Find research papers about: %q published within the last %d days. Use the 'arxiv' tool with days_back=%d.",
				ac.Query, ac.DaysBack, ac.DaysBack)
		} else {
			goal = fmt.Sprintf("Find research papers about: %q. Use the 'arxiv' tool.", ac.Query)
		}

	case entity.ScoutKindHTTP:
		goal = fmt.Sprintf(
			"Analyze the content at: %s. Use the 'http_request' tool to fetch it.", cfg.HTTP().URL)

	case entity.ScoutKindMeta:
		mc := cfg.Meta()
		goal = mc.OrchestrationPrompt + " Use the available scout tools to gather content from each child scout."

	default:
		goal = "Find interesting content."
	}

	if hint != "" {
		goal += " On this attempt, " + hint + "."
	}
	return goal
}

// formatReport renders a scouting-intent Draft's body: a numbered list of
// surviving items, the notify-only report spec.md §4.E.7 describes.
func formatReport(sc *entity.Scout, items []entity.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scout report: %s\n\n", sc.Name)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, it.DisplayTitle(), it.URL)
		if it.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", it.Summary)
		}
		if len(it.Sources) > 0 {
			fmt.Fprintf(&b, "   Related: %s\n", strings.Join(it.Sources, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// generateDraft implements spec.md §4.E.8's generation-intent tail: select
// the best item (an untooled invocation), write the platform draft
// (another untooled invocation), index the draft text as provenance =
// generated, and persist.
func (e *Executor) generateDraft(ctx context.Context, sc *entity.Scout, cfg RawConfig, items []entity.Item, logger *slog.Logger) (*entity.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := e.selectBest(ctx, sc, items, logger)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	platform := entity.NotifyOnlyPlatform
	if len(sc.Platforms) > 0 {
		platform = sc.Platforms[0]
	}
	text := e.writeDraft(ctx, sc, platform, items[best], logger)

	if err := e.dedupStore.Add(ctx, text, entity.ProvenanceGenerated); err != nil {
		logger.Warn("failed to index generated draft text", slog.Any("error", err))
	}

	d := &entity.Draft{
		ScoutID:   sc.ID,
		Content:   text,
		Platform:  platform,
		Status:    entity.DraftPendingReview,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.draftRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("scout %s: create draft: %w", sc.Name, err)
	}
	metrics.RecordDraftEmitted(sc.Intent, platform)
	return d, nil
}

// selectBest asks the Agent Runtime (no tools bound) to pick the strongest
// item, falling back to the first item on any invocation or decode failure
// — spec.md §4.E.8: "any parse failure falls back to index 0". This
// fallback is local to selection and never triggers the scout-level retry
// cycle in discoverWithRetry.
func (e *Executor) selectBest(ctx context.Context, sc *entity.Scout, items []entity.Item, logger *slog.Logger) int {
	var b strings.Builder
	b.WriteString("Select the single best item from this list. Respond with its 1-based position only.\n\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, it.DisplayTitle(), it.Summary)
	}

	raw, err := e.runtime.Invoke(ctx, agent.InvokeRequest{
		ScoutName:        sc.Name,
		Kind:             string(sc.Kind),
		Goal:             b.String(),
		ResultSchemaText: agent.IndexSchemaText,
	})
	if err != nil {
		logger.Warn("select-best invocation failed, defaulting to the first item", slog.Any("error", err))
		return 0
	}

	idx, err := agent.DecodeIndex(raw)
	if err != nil || idx > len(items) {
		logger.Warn("select-best returned an invalid index, defaulting to the first item", slog.Any("error", err))
		return 0
	}
	return idx - 1
}

// writeDraft asks the Agent Runtime (no tools bound, platform formatting
// rules in SystemPrompt) to write the post body. On failure it falls back
// to a bare title+link, mirroring original_source's generate_draft except
// clause: "f'{item.title}\n{item.url} (Error generating draft: {e})'".
func (e *Executor) writeDraft(ctx context.Context, sc *entity.Scout, platform string, item entity.Item, logger *slog.Logger) string {
	goal := fmt.Sprintf("Write a %s post about this item:\n\nTitle: %s\nURL: %s\nSummary: %s",
		platform, item.Title, item.URL, item.Summary)

	raw, err := e.runtime.Invoke(ctx, agent.InvokeRequest{
		ScoutName:        sc.Name,
		Kind:             string(sc.Kind),
		SystemPrompt:     platformFormattingRule(platform),
		Goal:             goal,
		ResultSchemaText: agent.TextSchemaText,
	})
	if err != nil {
		logger.Warn("draft-writing invocation failed, falling back to a bare link", slog.Any("error", err))
		return fmt.Sprintf("%s\n%s (error generating draft: %v)", item.Title, item.URL, err)
	}

	text, err := agent.DecodeText(raw)
	if err != nil {
		logger.Warn("draft-writing returned invalid text, falling back to a bare link", slog.Any("error", err))
		return fmt.Sprintf("%s\n%s (error generating draft: %v)", item.Title, item.URL, err)
	}
	return text
}

// platformFormattingRule is the per-platform formatting-rules component of
// spec.md §4.D's system prompt (component c), used only for the
// generation-intent draft-writing call.
func platformFormattingRule(platform string) string {
	switch strings.ToLower(platform) {
	case "twitter", "x":
		return "Write for X/Twitter: under 280 characters, punchy, no hashtag spam, at most one link."
	case "mastodon":
		return "Write for Mastodon: under 500 characters, conversational tone, include the source link."
	case "linkedin":
		return "Write for LinkedIn: professional tone, 2-4 short paragraphs, include the source link at the end."
	case "discord":
		return "Write for a Discord announcement channel: brief, friendly, markdown-formatted, include the source link."
	default:
		return "Write a concise, engaging post including the source link."
	}
}
