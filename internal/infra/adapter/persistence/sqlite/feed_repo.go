package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type FeedRepo struct{ db *sql.DB }

func NewFeedRepo(db *sql.DB) repository.FeedRepository {
	return &FeedRepo{db: db}
}

const feedColumns = `id, url, title, scout_id, poll_interval, last_polled_at, auth_headers`

func scanFeed(scan func(...any) error) (*entity.Feed, error) {
	var (
		f            entity.Feed
		scoutID      sql.NullInt64
		pollInterval int64
		lastPolledAt sql.NullTime
	)
	if err := scan(&f.ID, &f.URL, &f.Title, &scoutID, &pollInterval, &lastPolledAt, &f.AuthHeaders); err != nil {
		return nil, err
	}
	if scoutID.Valid {
		f.ScoutID = &scoutID.Int64
	}
	f.PollInterval = time.Duration(pollInterval) * time.Second
	if lastPolledAt.Valid {
		f.LastPolledAt = &lastPolledAt.Time
	}
	return &f, nil
}

func (repo *FeedRepo) Get(ctx context.Context, id int64) (*entity.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = ? LIMIT 1`
	f, err := scanFeed(repo.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

func (repo *FeedRepo) FindByURL(ctx context.Context, url string) (*entity.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE url = ? LIMIT 1`
	f, err := scanFeed(repo.db.QueryRowContext(ctx, query, url).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByURL: %w", err)
	}
	return f, nil
}

func (repo *FeedRepo) ListByScout(ctx context.Context, scoutID int64) ([]*entity.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE scout_id = ? ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, scoutID)
	if err != nil {
		return nil, fmt.Errorf("ListByScout: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	feeds := make([]*entity.Feed, 0, 8)
	for rows.Next() {
		f, err := scanFeed(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListByScout: Scan: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func (repo *FeedRepo) Create(ctx context.Context, f *entity.Feed) error {
	const query = `
INSERT INTO feeds (url, title, scout_id, poll_interval, auth_headers)
VALUES (?, ?, ?, ?, ?)`
	pollSeconds := int64(f.PollInterval.Seconds())
	if pollSeconds == 0 {
		pollSeconds = 3600
	}
	res, err := repo.db.ExecContext(ctx, query, f.URL, f.Title, f.ScoutID, pollSeconds, f.AuthHeaders)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	f.ID = id
	return nil
}

func (repo *FeedRepo) TouchPolledAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE feeds SET last_polled_at = ? WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, query, t, id)
	if err != nil {
		return fmt.Errorf("TouchPolledAt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("TouchPolledAt: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// Delete cascades to the feed's Entries in one transaction before removing
// the feed row itself.
func (repo *FeedRepo) Delete(ctx context.Context, id int64) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Delete: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE feed_id = ?`, id); err != nil {
		return fmt.Errorf("Delete: entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: feeds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return tx.Commit()
}
