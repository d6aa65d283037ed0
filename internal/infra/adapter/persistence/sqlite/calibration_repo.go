package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type CalibrationRepo struct{ db *sql.DB }

func NewCalibrationRepo(db *sql.DB) repository.CalibrationRepository {
	return &CalibrationRepo{db: db}
}

func (repo *CalibrationRepo) Create(ctx context.Context, c *entity.Calibration) error {
	const query = `
INSERT INTO calibrations (scout_id, source_url, generated_text, human_feedback, created_at)
VALUES (?, ?, ?, ?, ?)`
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := repo.db.ExecContext(ctx, query, c.ScoutID, c.SourceURL, c.GeneratedText, c.HumanFeedback, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	c.ID = id
	return nil
}

func (repo *CalibrationRepo) CountByScout(ctx context.Context, scoutID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM calibrations WHERE scout_id = ?`
	var count int
	if err := repo.db.QueryRowContext(ctx, query, scoutID).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountByScout: %w", err)
	}
	return count, nil
}
