package review

import (
	"context"
	"log/slog"

	"scoutengine/internal/domain/entity"
)

// NoopChannel is the headless default HumanChannel: it logs each surfaced
// draft instead of pushing it anywhere, so a deployment without a chat
// surface still drains the pending queue into reviewing and the operator
// reviews via cmd/scoutctl. Same Null Object role as the teacher's
// notifier.NoOpNotifier.
type NoopChannel struct{}

func (NoopChannel) Surface(ctx context.Context, d *entity.Draft) error {
	slog.InfoContext(ctx, "draft awaiting review",
		slog.Int64("draft_id", d.ID),
		slog.String("platform", d.Platform),
		slog.Int("length", len(d.Content)))
	return nil
}
