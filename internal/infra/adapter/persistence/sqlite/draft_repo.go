package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type DraftRepo struct{ db *sql.DB }

func NewDraftRepo(db *sql.DB) repository.DraftRepository {
	return &DraftRepo{db: db}
}

const draftColumns = `id, scout_id, content, platform, status, created_at, posted_at, external_id`

func scanDraft(scan func(...any) error) (*entity.Draft, error) {
	var (
		d          entity.Draft
		postedAt   sql.NullTime
		externalID sql.NullString
	)
	if err := scan(&d.ID, &d.ScoutID, &d.Content, &d.Platform, &d.Status, &d.CreatedAt, &postedAt, &externalID); err != nil {
		return nil, err
	}
	if postedAt.Valid {
		d.PostedAt = &postedAt.Time
	}
	if externalID.Valid {
		d.ExternalID = &externalID.String
	}
	return &d, nil
}

func (repo *DraftRepo) Get(ctx context.Context, id int64) (*entity.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = ? LIMIT 1`
	d, err := scanDraft(repo.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return d, nil
}

func (repo *DraftRepo) Create(ctx context.Context, d *entity.Draft) error {
	const query = `
INSERT INTO drafts (scout_id, content, platform, status, created_at)
VALUES (?, ?, ?, ?, ?)`
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = entity.DraftPendingReview
	}
	res, err := repo.db.ExecContext(ctx, query, d.ScoutID, d.Content, d.Platform, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	d.ID = id
	return nil
}

// ListPendingReview returns pending_review Drafts ordered by primary key —
// the insertion order the Review Bus must process them in.
func (repo *DraftRepo) ListPendingReview(ctx context.Context) ([]*entity.Draft, error) {
	const query = `SELECT ` + draftColumns + ` FROM drafts WHERE status = ? ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, entity.DraftPendingReview)
	if err != nil {
		return nil, fmt.Errorf("ListPendingReview: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	drafts := make([]*entity.Draft, 0, 16)
	for rows.Next() {
		d, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListPendingReview: Scan: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// Surface atomically flips one Draft from pending_review to reviewing in a
// single UPDATE ... WHERE status = 'pending_review', so two callers racing
// to surface the same Draft can't both succeed.
func (repo *DraftRepo) Surface(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE drafts SET status = ? WHERE id = ? AND status = ?`
	res, err := repo.db.ExecContext(ctx, query, entity.DraftReviewing, id, entity.DraftPendingReview)
	if err != nil {
		return false, fmt.Errorf("Surface: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Surface: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (repo *DraftRepo) Update(ctx context.Context, d *entity.Draft) error {
	const query = `
UPDATE drafts SET content = ?, platform = ?, status = ?, posted_at = ?, external_id = ?
WHERE id = ?`
	var postedAt sql.NullTime
	if d.PostedAt != nil {
		postedAt = sql.NullTime{Time: *d.PostedAt, Valid: true}
	}
	var externalID sql.NullString
	if d.ExternalID != nil {
		externalID = sql.NullString{String: *d.ExternalID, Valid: true}
	}
	res, err := repo.db.ExecContext(ctx, query, d.Content, d.Platform, d.Status, postedAt, externalID, d.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
