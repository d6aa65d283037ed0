package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type EntryRepo struct{ db *sql.DB }

func NewEntryRepo(db *sql.DB) repository.EntryRepository {
	return &EntryRepo{db: db}
}

const entryColumns = `id, feed_id, feed_entry_id, title, link, published_at, author, summary, content, categories, is_processed, processed_at`

func scanEntry(scan func(...any) error) (*entity.Entry, error) {
	var (
		e           entity.Entry
		publishedAt sql.NullTime
		categories  string
		processedAt sql.NullTime
	)
	if err := scan(&e.ID, &e.FeedID, &e.FeedEntryID, &e.Title, &e.Link, &publishedAt,
		&e.Author, &e.Summary, &e.Content, &categories, &e.IsProcessed, &processedAt); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		e.PublishedAt = &publishedAt.Time
	}
	if categories != "" {
		e.Categories = strings.Split(categories, ",")
	}
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return &e, nil
}

// Upsert relies on the (feed_id, feed_entry_id) UNIQUE constraint: an insert
// conflicting on it is turned into a no-op via INSERT OR IGNORE, and
// RowsAffected tells us whether a new row actually landed.
func (repo *EntryRepo) Upsert(ctx context.Context, e *entity.Entry) (bool, error) {
	const query = `
INSERT OR IGNORE INTO entries
    (feed_id, feed_entry_id, title, link, published_at, author, summary, content, categories, is_processed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`
	res, err := repo.db.ExecContext(ctx, query,
		e.FeedID, e.FeedEntryID, e.Title, e.Link, e.PublishedAt, e.Author, e.Summary, e.Content,
		strings.Join(e.Categories, ","))
	if err != nil {
		return false, fmt.Errorf("Upsert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Upsert: RowsAffected: %w", err)
	}
	if n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("Upsert: LastInsertId: %w", err)
		}
		e.ID = id
		return true, nil
	}
	return false, nil
}

func (repo *EntryRepo) Read(ctx context.Context, feedID int64, limit int, onlyUnprocessed bool) ([]*entity.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE feed_id = ?`
	args := []any{feedID}
	if onlyUnprocessed {
		query += ` AND is_processed = 0`
	}
	query += ` ORDER BY published_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Read: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*entity.Entry, 0, 32)
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("Read: Scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (repo *EntryRepo) MarkProcessed(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entryIDs)), ",")
	query := fmt.Sprintf(`UPDATE entries SET is_processed = 1, processed_at = ? WHERE id IN (%s)`, placeholders)

	args := make([]any, 0, len(entryIDs)+1)
	args = append(args, time.Now().UTC())
	for _, id := range entryIDs {
		args = append(args, id)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

func (repo *EntryRepo) ResetProcessed(ctx context.Context, feedID *int64) error {
	var err error
	if feedID == nil {
		_, err = repo.db.ExecContext(ctx, `UPDATE entries SET is_processed = 0, processed_at = NULL`)
	} else {
		_, err = repo.db.ExecContext(ctx, `UPDATE entries SET is_processed = 0, processed_at = NULL WHERE feed_id = ?`, *feedID)
	}
	if err != nil {
		return fmt.Errorf("ResetProcessed: %w", err)
	}
	return nil
}
