// Package review implements the Review Bus of spec.md §4.G: a passive
// state machine over the drafts table plus an out-of-band human channel.
// It shares the Persistence Store with the Scheduler but never shares
// in-memory state with it. Written in the teacher's usecase-service idiom
// (interfaces + constructor injection); spec.md §9 settles the design as
// bus-only — the Executor never talks to the human channel directly.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"scoutengine/internal/agent"
	"scoutengine/internal/dedup"
	"scoutengine/internal/domain/entity"
	"scoutengine/internal/feedback"
	"scoutengine/internal/observability/metrics"
	"scoutengine/internal/publisher"
	"scoutengine/internal/repository"
)

// HumanChannel is the outbound half of spec.md §6's human-channel
// contract: the bus pushes drafts out through Surface; the channel calls
// back in through Approve/Reject/Refine.
type HumanChannel interface {
	Surface(ctx context.Context, draft *entity.Draft) error
}

// invoker is the narrow Agent Runtime seam the refine path uses.
type invoker interface {
	Invoke(ctx context.Context, req agent.InvokeRequest) (json.RawMessage, error)
}

// Bus couples pending Drafts to the human channel and applies the verdicts
// it sends back. At-most-once terminal transition per Draft is guaranteed
// by the entity state machine plus the repository's atomic Surface.
type Bus struct {
	draftRepo  repository.DraftRepository
	scoutRepo  repository.ScoutRepository
	dedupStore *dedup.Store
	feedback   *feedback.Service
	runtime    invoker
	channel    HumanChannel
	publishers map[string]publisher.Publisher
	logger     *slog.Logger
}

func NewBus(
	draftRepo repository.DraftRepository,
	scoutRepo repository.ScoutRepository,
	dedupStore *dedup.Store,
	feedbackSvc *feedback.Service,
	runtime invoker,
	channel HumanChannel,
	publishers map[string]publisher.Publisher,
	logger *slog.Logger,
) *Bus {
	if channel == nil {
		channel = NoopChannel{}
	}
	if publishers == nil {
		publishers = map[string]publisher.Publisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		draftRepo:  draftRepo,
		scoutRepo:  scoutRepo,
		dedupStore: dedupStore,
		feedback:   feedbackSvc,
		runtime:    runtime,
		channel:    channel,
		publishers: publishers,
		logger:     logger,
	}
}

// PollOnce surfaces every pending_review Draft: each is atomically flipped
// to reviewing (the repository's compare-and-set UPDATE), then dispatched
// to the human channel. Drafts are processed in insertion order. A Draft
// that loses the flip race — already reviewing — is skipped, which is what
// makes re-polling idempotent. A channel dispatch failure is logged, not
// rolled back: the Draft stays reviewing and the human channel is expected
// to offer a way to list drafts it missed.
func (b *Bus) PollOnce(ctx context.Context) error {
	drafts, err := b.draftRepo.ListPendingReview(ctx)
	if err != nil {
		return fmt.Errorf("review poll: %w", err)
	}

	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return err
		}
		surfaced, err := b.draftRepo.Surface(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("review poll: surface draft %d: %w", d.ID, err)
		}
		if !surfaced {
			continue
		}
		d.Status = entity.DraftReviewing
		metrics.RecordDraftTransition(entity.DraftReviewing)

		if err := b.channel.Surface(ctx, d); err != nil {
			b.logger.Warn("failed to dispatch draft to human channel",
				slog.Int64("draft_id", d.ID), slog.Any("error", err))
		}
	}
	return nil
}

// CheckPublishers authenticates every configured publisher concurrently,
// returning the first failure. Run once at daemon startup so a revoked
// webhook or missing credential surfaces before a human approves a Draft
// against it.
func (b *Bus) CheckPublishers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for platform, pub := range b.publishers {
		g.Go(func() error {
			ok, err := pub.Authenticate(ctx)
			if err != nil {
				return fmt.Errorf("publisher %s: authenticate: %w", platform, err)
			}
			if !ok {
				return fmt.Errorf("publisher %s: authentication rejected", platform)
			}
			return nil
		})
	}
	return g.Wait()
}

// Approve applies the approve verdict: publish (when the platform is
// publishable), then transition to posted. A publish failure leaves the
// Draft in reviewing and returns the error so the human can retry —
// spec.md §7: "Publish failures inside the Review Bus leave the Draft in
// reviewing."
func (b *Bus) Approve(ctx context.Context, draftID int64) error {
	d, err := b.reviewingDraft(ctx, draftID)
	if err != nil {
		return err
	}

	var externalID string
	if d.IsPublishable() {
		pub, ok := b.publishers[d.Platform]
		if !ok {
			pub = publisher.NoopPublisher{Platform: d.Platform}
		}
		externalID, err = pub.Publish(ctx, d.Content)
		if err != nil {
			metrics.RecordPublishFailure(d.Platform)
			return fmt.Errorf("approve draft %d: publish to %s: %w", draftID, d.Platform, err)
		}
	}

	if err := d.MarkPosted(time.Now().UTC(), externalID); err != nil {
		return fmt.Errorf("approve draft %d: %w", draftID, err)
	}
	if err := b.draftRepo.Update(ctx, d); err != nil {
		return fmt.Errorf("approve draft %d: persist: %w", draftID, err)
	}
	metrics.RecordDraftTransition(entity.DraftPosted)

	b.journal(ctx, d, entity.FeedbackApproved, "")
	return nil
}

// AutoApprove drives a Draft whose Scout does not require human review
// through the full state machine in one step: surface, then approve. The
// intermediate reviewing state is still passed through so the Draft's
// history never skips a transition the invariants forbid.
func (b *Bus) AutoApprove(ctx context.Context, draftID int64) error {
	surfaced, err := b.draftRepo.Surface(ctx, draftID)
	if err != nil {
		return fmt.Errorf("auto-approve draft %d: surface: %w", draftID, err)
	}
	if !surfaced {
		return fmt.Errorf("auto-approve draft %d: not in pending_review", draftID)
	}
	metrics.RecordDraftTransition(entity.DraftReviewing)
	return b.Approve(ctx, draftID)
}

// Reject applies the terminal reject verdict.
func (b *Bus) Reject(ctx context.Context, draftID int64) error {
	d, err := b.reviewingDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if err := d.MarkRejected(); err != nil {
		return fmt.Errorf("reject draft %d: %w", draftID, err)
	}
	if err := b.draftRepo.Update(ctx, d); err != nil {
		return fmt.Errorf("reject draft %d: persist: %w", draftID, err)
	}
	metrics.RecordDraftTransition(entity.DraftRejected)

	b.journal(ctx, d, entity.FeedbackRejected, "")
	return nil
}

// Refine asks the model to rewrite the Draft's content given the human's
// free-text critique, stores the new content, re-surfaces the Draft (it
// stays in reviewing), and journals the critique as
// Feedback(action=refinement) plus a Calibration row. The rewritten text
// is indexed as provenance=generated, same as a fresh draft.
func (b *Bus) Refine(ctx context.Context, draftID int64, feedbackText string) error {
	d, err := b.reviewingDraft(ctx, draftID)
	if err != nil {
		return err
	}

	sc, err := b.scoutRepo.Get(ctx, d.ScoutID)
	if err != nil {
		return fmt.Errorf("refine draft %d: load scout: %w", draftID, err)
	}
	if sc == nil {
		return fmt.Errorf("refine draft %d: scout %d: %w", draftID, d.ScoutID, entity.ErrNotFound)
	}

	previous := d.Content
	rewritten, err := b.rewriteContent(ctx, sc, d, feedbackText)
	if err != nil {
		return fmt.Errorf("refine draft %d: %w", draftID, err)
	}

	d.Content = rewritten
	if err := b.draftRepo.Update(ctx, d); err != nil {
		return fmt.Errorf("refine draft %d: persist: %w", draftID, err)
	}

	if b.dedupStore != nil {
		if err := b.dedupStore.Add(ctx, rewritten, entity.ProvenanceGenerated); err != nil {
			b.logger.Warn("failed to index refined draft text",
				slog.Int64("draft_id", d.ID), slog.Any("error", err))
		}
	}

	b.journal(ctx, d, entity.FeedbackRefinement, feedbackText)
	if b.feedback != nil {
		if err := b.feedback.RecordRefinement(ctx, sc, "", previous, feedbackText); err != nil {
			b.logger.Warn("failed to record calibration",
				slog.Int64("draft_id", d.ID), slog.Any("error", err))
		}
	}

	if err := b.channel.Surface(ctx, d); err != nil {
		b.logger.Warn("failed to re-surface refined draft",
			slog.Int64("draft_id", d.ID), slog.Any("error", err))
	}
	return nil
}

// reviewingDraft loads a Draft and checks it is in the reviewing state —
// the only state any verdict is legal from.
func (b *Bus) reviewingDraft(ctx context.Context, draftID int64) (*entity.Draft, error) {
	d, err := b.draftRepo.Get(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("draft %d: %w", draftID, err)
	}
	if d == nil {
		return nil, fmt.Errorf("draft %d: %w", draftID, entity.ErrNotFound)
	}
	if d.Status != entity.DraftReviewing {
		return nil, fmt.Errorf("draft %d: not in review (status %s)", draftID, d.Status)
	}
	return d, nil
}

// rewriteContent runs the untooled rewrite invocation. Platform formatting
// constraints ride along in the goal so a "make it shorter" on an X post
// doesn't come back over the character limit.
func (b *Bus) rewriteContent(ctx context.Context, sc *entity.Scout, d *entity.Draft, feedbackText string) (string, error) {
	if b.runtime == nil {
		return "", &entity.ConfigurationMissingError{Key: "llm provider"}
	}
	goal := fmt.Sprintf(
		"Rewrite the following %s draft to address the reviewer's feedback. "+
			"Return only the rewritten draft text.\n\nDRAFT:\n%s\n\nFEEDBACK:\n%s",
		d.Platform, d.Content, feedbackText)

	raw, err := b.runtime.Invoke(ctx, agent.InvokeRequest{
		ScoutName:        sc.Name,
		Kind:             string(sc.Kind),
		Goal:             goal,
		ResultSchemaText: agent.TextSchemaText,
	})
	if err != nil {
		return "", err
	}
	return agent.DecodeText(raw)
}

// journal records the verdict as a Feedback row. Journalling failures are
// logged, never allowed to fail the verdict itself.
func (b *Bus) journal(ctx context.Context, d *entity.Draft, action entity.FeedbackAction, note string) {
	if b.feedback == nil {
		return
	}
	if err := b.feedback.Record(ctx, d.ScoutID, "", action, note); err != nil {
		b.logger.Warn("failed to journal feedback",
			slog.Int64("draft_id", d.ID), slog.String("action", string(action)), slog.Any("error", err))
	}
}
