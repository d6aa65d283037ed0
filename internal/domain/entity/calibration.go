package entity

import "time"

// Calibration is an append-only record of one generated draft and the human
// feedback on it, counted to gate calibration-based prompt refinement
// (written by internal/feedback.Service.RecordRefinement).
type Calibration struct {
	ID            int64
	ScoutID       int64
	SourceURL     string
	GeneratedText string
	HumanFeedback string
	CreatedAt     time.Time
}
