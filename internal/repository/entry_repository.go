package repository

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// EntryRepository persists Entry rows and implements the read/mark/reset
// protocol spec.md §4.B assigns to the RSS adapter (the adapter calls
// through this interface rather than touching SQL directly, mirroring the
// teacher's adapter-over-repository layering).
type EntryRepository interface {
	// Upsert inserts the entry if (FeedID, FeedEntryID) is unseen, or is a
	// no-op if it already exists — the idempotency primitive spec.md §8
	// property 3 requires. Returns true if a new row was inserted.
	Upsert(ctx context.Context, entry *entity.Entry) (inserted bool, err error)
	// Read returns entries for a feed ordered by publish-time descending,
	// optionally restricted to unprocessed ones, per spec.md §4.B.
	Read(ctx context.Context, feedID int64, limit int, onlyUnprocessed bool) ([]*entity.Entry, error)
	MarkProcessed(ctx context.Context, entryIDs []int64) error
	// ResetProcessed clears is_processed for every entry, or only those of
	// feedID when non-nil.
	ResetProcessed(ctx context.Context, feedID *int64) error
}
