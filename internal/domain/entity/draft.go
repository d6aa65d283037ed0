package entity

import (
	"fmt"
	"time"
)

// DraftStatus is the Draft state machine per spec: pending_review -> reviewing -> {posted, rejected}.
type DraftStatus string

const (
	DraftPendingReview DraftStatus = "pending_review"
	DraftReviewing     DraftStatus = "reviewing"
	DraftPosted        DraftStatus = "posted"
	DraftRejected      DraftStatus = "rejected"
)

// NotifyOnlyPlatform is the sentinel platform value for scouting-intent
// drafts, which are reports rather than publishable posts.
const NotifyOnlyPlatform = "notify-only"

// Draft is the output of one generation-intent run, or the formatted report
// of one scouting-intent run.
type Draft struct {
	ID         int64
	ScoutID    int64
	Content    string
	Platform   string
	Status     DraftStatus
	CreatedAt  time.Time
	PostedAt   *time.Time
	ExternalID *string
}

var validDraftTransitions = map[DraftStatus]map[DraftStatus]bool{
	DraftPendingReview: {DraftReviewing: true},
	DraftReviewing:     {DraftPosted: true, DraftRejected: true},
}

// CanTransitionTo reports whether moving from the Draft's current status to
// target is a legal transition. Reviewing -> Reviewing (re-surfacing after a
// refine) is intentionally not modelled here: refine keeps the status as-is,
// it never re-enters via this check.
func (d *Draft) CanTransitionTo(target DraftStatus) bool {
	return validDraftTransitions[d.Status][target]
}

// MarkPosted transitions the draft to posted, stamping posted-at and the
// publisher-assigned external id, per spec.md §3: "A Draft in posted has a
// non-null posted-at and (for publishable platforms) a non-null external id."
// An empty externalID leaves ExternalID nil — the notify-only sentinel has
// no downstream post to reference.
func (d *Draft) MarkPosted(now time.Time, externalID string) error {
	if !d.CanTransitionTo(DraftPosted) {
		return fmt.Errorf("draft %d: cannot transition from %s to %s", d.ID, d.Status, DraftPosted)
	}
	d.Status = DraftPosted
	d.PostedAt = &now
	if externalID != "" {
		d.ExternalID = &externalID
	}
	return nil
}

// MarkRejected transitions the draft to its terminal rejected state.
func (d *Draft) MarkRejected() error {
	if !d.CanTransitionTo(DraftRejected) {
		return fmt.Errorf("draft %d: cannot transition from %s to %s", d.ID, d.Status, DraftRejected)
	}
	d.Status = DraftRejected
	return nil
}

// Surface transitions a pending_review Draft to reviewing. The Review Bus
// calls this exactly once per Draft (spec.md §3 invariant: "atomically flips
// to reviewing on first surfacing").
func (d *Draft) Surface() error {
	if !d.CanTransitionTo(DraftReviewing) {
		return fmt.Errorf("draft %d: cannot surface from status %s", d.ID, d.Status)
	}
	d.Status = DraftReviewing
	return nil
}

// IsPublishable reports whether the draft targets a real outbound platform
// rather than the notify-only sentinel.
func (d *Draft) IsPublishable() bool {
	return d.Platform != NotifyOnlyPlatform
}
