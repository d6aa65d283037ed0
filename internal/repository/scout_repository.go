package repository

import (
	"context"
	"time"

	"scoutengine/internal/domain/entity"
)

// ScoutRepository persists Scout rows. Grounded on the teacher's
// SourceRepository interface shape (Get/List/Create/Update/Delete plus a
// narrow touch-mutator), generalized to the Scout entity.
type ScoutRepository interface {
	Get(ctx context.Context, id int64) (*entity.Scout, error)
	GetByName(ctx context.Context, name string) (*entity.Scout, error)
	List(ctx context.Context) ([]*entity.Scout, error)
	ListScheduled(ctx context.Context) ([]*entity.Scout, error) // CronExpr != ""
	Create(ctx context.Context, scout *entity.Scout) error
	Update(ctx context.Context, scout *entity.Scout) error
	// Delete removes a scout and cascades to its feedback/calibration rows
	// (spec.md §3: "deleted by user (with cascade to feedback/calibration)").
	Delete(ctx context.Context, id int64) error
	TouchLastFiredAt(ctx context.Context, id int64, t time.Time) error
}
