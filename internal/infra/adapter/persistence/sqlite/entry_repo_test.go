package sqlite_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/infra/adapter/persistence/sqlite"
)

func TestEntryRepo_Upsert_InsertsUnseenEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO entries")).
		WillReturnResult(sqlmock.NewResult(7, 1))

	repo := sqlite.NewEntryRepo(db)
	inserted, err := repo.Upsert(context.Background(), &entity.Entry{
		FeedID: 1, FeedEntryID: "guid-1", Title: "T", Link: "https://example.com/1",
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestEntryRepo_Upsert_DuplicateFeedEntryIDIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	// INSERT OR IGNORE hitting the (feed_id, feed_entry_id) UNIQUE
	// constraint affects zero rows — re-polling never duplicates an Entry.
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := sqlite.NewEntryRepo(db)
	inserted, err := repo.Upsert(context.Background(), &entity.Entry{
		FeedID: 1, FeedEntryID: "guid-1", Title: "T", Link: "https://example.com/1",
	})
	require.NoError(t, err)
	require.False(t, inserted)
}

func TestEntryRepo_Read_UnprocessedOrderedByPublishTimeDesc(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cols := []string{"id", "feed_id", "feed_entry_id", "title", "link", "published_at",
		"author", "summary", "content", "categories", "is_processed", "processed_at"}
	now := time.Now()
	rows := sqlmock.NewRows(cols).
		AddRow(2, 1, "guid-2", "Newer", "https://example.com/2", now, "", "", "", "", false, nil).
		AddRow(1, 1, "guid-1", "Older", "https://example.com/1", now.Add(-time.Hour), "", "", "", "go,releases", false, nil)

	mock.ExpectQuery(regexp.QuoteMeta("AND is_processed = 0 ORDER BY published_at DESC LIMIT ?")).
		WithArgs(int64(1), 10).
		WillReturnRows(rows)

	repo := sqlite.NewEntryRepo(db)
	got, err := repo.Read(context.Background(), 1, 10, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Newer", got[0].Title)
	require.Equal(t, []string{"go", "releases"}, got[1].Categories)
}

func TestEntryRepo_Read_AllIncludesProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cols := []string{"id", "feed_id", "feed_entry_id", "title", "link", "published_at",
		"author", "summary", "content", "categories", "is_processed", "processed_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, 1, "guid-1", "T", "https://example.com/1", time.Now(), "", "", "", "", true, time.Now())

	// No is_processed filter when onlyUnprocessed is false.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE feed_id = ? ORDER BY published_at DESC LIMIT ?")).
		WithArgs(int64(1), 10).
		WillReturnRows(rows)

	repo := sqlite.NewEntryRepo(db)
	got, err := repo.Read(context.Background(), 1, 10, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].IsProcessed)
	require.NotNil(t, got[0].ProcessedAt)
}

func TestEntryRepo_MarkProcessed_StampsProcessedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entries SET is_processed = 1, processed_at = ? WHERE id IN (?,?)")).
		WithArgs(sqlmock.AnyArg(), int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := sqlite.NewEntryRepo(db)
	require.NoError(t, repo.MarkProcessed(context.Background(), []int64{1, 2}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_MarkProcessed_EmptyListIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := sqlite.NewEntryRepo(db)
	require.NoError(t, repo.MarkProcessed(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_ResetProcessed_ScopedToFeed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entries SET is_processed = 0, processed_at = NULL WHERE feed_id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 5))

	repo := sqlite.NewEntryRepo(db)
	feedID := int64(3)
	require.NoError(t, repo.ResetProcessed(context.Background(), &feedID))
	require.NoError(t, mock.ExpectationsWereMet())
}
