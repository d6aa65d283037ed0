package repository

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// FeedbackRepository is a pure journalling repository: Create-only, no
// Update/Delete, mirroring the teacher's append-only article-embedding
// repository shape.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *entity.Feedback) error
	ListByScout(ctx context.Context, scoutID int64) ([]*entity.Feedback, error)
}
