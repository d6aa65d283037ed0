package repository

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// CalibrationRepository is append-only, same shape as FeedbackRepository.
type CalibrationRepository interface {
	Create(ctx context.Context, c *entity.Calibration) error
	CountByScout(ctx context.Context, scoutID int64) (int, error)
}
