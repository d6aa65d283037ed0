package entity

import "time"

// Entry is one RSS/Atom item persisted under its owning Feed. The
// (FeedID, FeedEntryID) pair is unique within a feed — the idempotency
// primitive spec.md §5(c) requires for re-polling: re-parsing the same feed
// document never creates a duplicate Entry (spec.md §8 property 3).
type Entry struct {
	ID          int64
	FeedID      int64
	FeedEntryID string // opaque, feed-assigned id (GUID or link, whichever gofeed surfaces)
	Title       string
	Link        string
	PublishedAt *time.Time
	Author      string
	Summary     string
	Content     string
	Categories  []string
	IsProcessed bool
	ProcessedAt *time.Time
}
