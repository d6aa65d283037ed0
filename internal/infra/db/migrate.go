package db

import (
	"database/sql"
	"fmt"
)

// MigrateUp creates the scout engine's schema if it does not already exist,
// then applies any guarded ALTER TABLE additions for columns added after a
// table's initial release. Every statement is safe to run against an
// already-migrated database, mirroring the teacher's idempotent
// CREATE TABLE IF NOT EXISTS pattern (internal/infra/db/migrate.go),
// adapted from Postgres DDL to sqlite.
func MigrateUp(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scouts (
		    id               INTEGER PRIMARY KEY AUTOINCREMENT,
		    name             TEXT NOT NULL UNIQUE,
		    kind             TEXT NOT NULL CHECK (kind IN ('rss','reddit','search','arxiv','http','meta')),
		    config_json      TEXT NOT NULL DEFAULT '',
		    intent           TEXT NOT NULL CHECK (intent IN ('scouting','generation')),
		    instruction      TEXT NOT NULL DEFAULT '',
		    platforms        TEXT NOT NULL DEFAULT '',
		    review_required  BOOLEAN NOT NULL DEFAULT 1,
		    cron_expr        TEXT NOT NULL DEFAULT '',
		    last_fired_at    DATETIME,
		    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS drafts (
		    id            INTEGER PRIMARY KEY AUTOINCREMENT,
		    scout_id      INTEGER NOT NULL REFERENCES scouts(id),
		    content       TEXT NOT NULL,
		    platform      TEXT NOT NULL,
		    status        TEXT NOT NULL CHECK (status IN ('pending_review','reviewing','posted','rejected')),
		    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		    posted_at     DATETIME,
		    external_id   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_scout_id ON drafts(scout_id)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
		    id          INTEGER PRIMARY KEY AUTOINCREMENT,
		    hash        TEXT NOT NULL UNIQUE,
		    embedding   BLOB,
		    provenance  TEXT NOT NULL CHECK (provenance IN ('retrieved','generated')),
		    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_provenance ON fingerprints(provenance)`,
		`CREATE TABLE IF NOT EXISTS feeds (
		    id              INTEGER PRIMARY KEY AUTOINCREMENT,
		    url             TEXT NOT NULL UNIQUE,
		    title           TEXT NOT NULL DEFAULT '',
		    scout_id        INTEGER REFERENCES scouts(id),
		    poll_interval   INTEGER NOT NULL DEFAULT 3600,
		    last_polled_at  DATETIME,
		    auth_headers    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
		    id             INTEGER PRIMARY KEY AUTOINCREMENT,
		    feed_id        INTEGER NOT NULL REFERENCES feeds(id),
		    feed_entry_id  TEXT NOT NULL,
		    title          TEXT NOT NULL DEFAULT '',
		    link           TEXT NOT NULL DEFAULT '',
		    published_at   DATETIME,
		    author         TEXT NOT NULL DEFAULT '',
		    summary        TEXT NOT NULL DEFAULT '',
		    content        TEXT NOT NULL DEFAULT '',
		    categories     TEXT NOT NULL DEFAULT '',
		    is_processed   BOOLEAN NOT NULL DEFAULT 0,
		    processed_at   DATETIME,
		    UNIQUE(feed_id, feed_entry_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_feed_unprocessed ON entries(feed_id, is_processed)`,
		`CREATE TABLE IF NOT EXISTS feedback (
		    id          INTEGER PRIMARY KEY AUTOINCREMENT,
		    scout_id    INTEGER NOT NULL REFERENCES scouts(id),
		    item_url    TEXT NOT NULL,
		    action      TEXT NOT NULL CHECK (action IN ('approved','rejected','refinement')),
		    note        TEXT NOT NULL DEFAULT '',
		    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_scout_id ON feedback(scout_id)`,
		`CREATE TABLE IF NOT EXISTS calibrations (
		    id              INTEGER PRIMARY KEY AUTOINCREMENT,
		    scout_id        INTEGER NOT NULL REFERENCES scouts(id),
		    source_url      TEXT NOT NULL DEFAULT '',
		    generated_text  TEXT NOT NULL DEFAULT '',
		    human_feedback  TEXT NOT NULL DEFAULT '',
		    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_scout_id ON calibrations(scout_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}

	if err := addColumnIfMissing(db, "scouts", "last_fired_at", "DATETIME"); err != nil {
		return err
	}

	return nil
}

// addColumnIfMissing runs ALTER TABLE ... ADD COLUMN guarded by PRAGMA
// table_info, so a column introduced after a table's initial release can be
// layered onto an already-migrated database without an error on re-run.
// Grounded on the teacher's migration style of tolerating already-applied
// DDL (internal/infra/db/migrate.go's "IF NOT EXISTS" / ignore-on-conflict
// idiom), translated to sqlite's lack of "ADD COLUMN IF NOT EXISTS".
func addColumnIfMissing(db *sql.DB, table, column, ddlType string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("addColumnIfMissing: table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			return fmt.Errorf("addColumnIfMissing: scan: %w", err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddlType)
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("addColumnIfMissing: %s: %w", alter, err)
	}
	return nil
}
