package repository

import (
	"context"
	"time"

	"scoutengine/internal/domain/entity"
)

// FeedRepository persists Feed rows for the RSS adapter.
type FeedRepository interface {
	Get(ctx context.Context, id int64) (*entity.Feed, error)
	// FindByURL backs the "subscribe" idempotency check (spec.md §8 property
	// 2: subscribing twice to the same URL yields the same Feed row).
	FindByURL(ctx context.Context, url string) (*entity.Feed, error)
	ListByScout(ctx context.Context, scoutID int64) ([]*entity.Feed, error)
	Create(ctx context.Context, feed *entity.Feed) error
	TouchPolledAt(ctx context.Context, id int64, t time.Time) error
	// Delete cascades to the feed's Entries (spec.md §3: "entries survive
	// feed deletion only transitively").
	Delete(ctx context.Context, id int64) error
}
