package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type FeedbackRepo struct{ db *sql.DB }

func NewFeedbackRepo(db *sql.DB) repository.FeedbackRepository {
	return &FeedbackRepo{db: db}
}

func (repo *FeedbackRepo) Create(ctx context.Context, fb *entity.Feedback) error {
	const query = `
INSERT INTO feedback (scout_id, item_url, action, note, created_at)
VALUES (?, ?, ?, ?, ?)`
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	res, err := repo.db.ExecContext(ctx, query, fb.ScoutID, fb.ItemURL, fb.Action, fb.Note, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	fb.ID = id
	return nil
}

func (repo *FeedbackRepo) ListByScout(ctx context.Context, scoutID int64) ([]*entity.Feedback, error) {
	const query = `
SELECT id, scout_id, item_url, action, note, created_at
FROM feedback WHERE scout_id = ? ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, scoutID)
	if err != nil {
		return nil, fmt.Errorf("ListByScout: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Feedback, 0, 16)
	for rows.Next() {
		var fb entity.Feedback
		if err := rows.Scan(&fb.ID, &fb.ScoutID, &fb.ItemURL, &fb.Action, &fb.Note, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListByScout: Scan: %w", err)
		}
		items = append(items, &fb)
	}
	return items, rows.Err()
}
