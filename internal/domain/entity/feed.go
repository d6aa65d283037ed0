package entity

import "time"

// Feed is an RSS/Atom subscription the RSS adapter polls. Feed URLs are
// unique: subscribing twice to the same URL yields the same row (spec.md §8
// property 2).
type Feed struct {
	ID           int64
	URL          string
	Title        string
	ScoutID      *int64 // nullable: a feed may be shared or orphaned from its originating scout
	PollInterval time.Duration
	LastPolledAt *time.Time
	AuthHeaders  string // opaque JSON blob, empty when no auth is required
}
