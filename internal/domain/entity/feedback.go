package entity

import "time"

// FeedbackAction is the human verdict recorded against an item or draft.
type FeedbackAction string

const (
	FeedbackApproved   FeedbackAction = "approved"
	FeedbackRejected   FeedbackAction = "rejected"
	FeedbackRefinement FeedbackAction = "refinement"
)

// Feedback is an append-only journal row: one human verdict on one item/url
// produced by one scout.
type Feedback struct {
	ID        int64
	ScoutID   int64
	ItemURL   string
	Action    FeedbackAction
	Note      string // optional free-text, e.g. the refinement instruction
	CreatedAt time.Time
}
