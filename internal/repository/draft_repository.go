package repository

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// DraftRepository persists Draft rows and the state-machine transitions
// spec.md §3/§4.G require to be atomic per row.
type DraftRepository interface {
	Get(ctx context.Context, id int64) (*entity.Draft, error)
	Create(ctx context.Context, draft *entity.Draft) error
	// ListPendingReview returns pending_review Drafts ordered by primary key,
	// per spec.md §5: "The Review Bus processes Drafts in insertion order."
	ListPendingReview(ctx context.Context) ([]*entity.Draft, error)
	// Surface atomically transitions one Draft from pending_review to
	// reviewing, returning false (no error) if it was not in pending_review
	// — the at-most-once surfacing guarantee lives here, not in caller code.
	Surface(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, draft *entity.Draft) error
}
