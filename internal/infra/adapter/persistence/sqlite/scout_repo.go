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

type ScoutRepo struct{ db *sql.DB }

func NewScoutRepo(db *sql.DB) repository.ScoutRepository {
	return &ScoutRepo{db: db}
}

func scanScout(scan func(...any) error) (*entity.Scout, error) {
	var (
		s           entity.Scout
		platforms   string
		lastFiredAt sql.NullTime
	)
	if err := scan(
		&s.ID, &s.Name, &s.Kind, &s.ConfigJSON, &s.Intent, &s.Instruction,
		&platforms, &s.ReviewRequired, &s.CronExpr, &lastFiredAt, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	if platforms != "" {
		s.Platforms = strings.Split(platforms, ",")
	}
	if lastFiredAt.Valid {
		s.LastFiredAt = &lastFiredAt.Time
	}
	return &s, nil
}

const scoutColumns = `id, name, kind, config_json, intent, instruction, platforms, review_required, cron_expr, last_fired_at, created_at`

func (repo *ScoutRepo) Get(ctx context.Context, id int64) (*entity.Scout, error) {
	query := `SELECT ` + scoutColumns + ` FROM scouts WHERE id = ? LIMIT 1`
	row := repo.db.QueryRowContext(ctx, query, id)
	s, err := scanScout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return s, nil
}

func (repo *ScoutRepo) GetByName(ctx context.Context, name string) (*entity.Scout, error) {
	query := `SELECT ` + scoutColumns + ` FROM scouts WHERE name = ? LIMIT 1`
	row := repo.db.QueryRowContext(ctx, query, name)
	s, err := scanScout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByName: %w", err)
	}
	return s, nil
}

func (repo *ScoutRepo) listWhere(ctx context.Context, where string) ([]*entity.Scout, error) {
	query := `SELECT ` + scoutColumns + ` FROM scouts` + where + ` ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scouts := make([]*entity.Scout, 0, 16)
	for rows.Next() {
		s, err := scanScout(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		scouts = append(scouts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows.Err: %w", err)
	}
	return scouts, nil
}

func (repo *ScoutRepo) List(ctx context.Context) ([]*entity.Scout, error) {
	return repo.listWhere(ctx, "")
}

func (repo *ScoutRepo) ListScheduled(ctx context.Context) ([]*entity.Scout, error) {
	return repo.listWhere(ctx, " WHERE cron_expr != ''")
}

func (repo *ScoutRepo) Create(ctx context.Context, s *entity.Scout) error {
	const query = `
INSERT INTO scouts (name, kind, config_json, intent, instruction, platforms, review_required, cron_expr, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := repo.db.ExecContext(ctx, query,
		s.Name, s.Kind, s.ConfigJSON, s.Intent, s.Instruction,
		strings.Join(s.Platforms, ","), s.ReviewRequired, s.CronExpr, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	s.ID = id
	return nil
}

func (repo *ScoutRepo) Update(ctx context.Context, s *entity.Scout) error {
	const query = `
UPDATE scouts SET name = ?, kind = ?, config_json = ?, intent = ?, instruction = ?,
    platforms = ?, review_required = ?, cron_expr = ?
WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, query,
		s.Name, s.Kind, s.ConfigJSON, s.Intent, s.Instruction,
		strings.Join(s.Platforms, ","), s.ReviewRequired, s.CronExpr, s.ID)
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

// Delete removes a scout and cascades to its feedback and calibration rows.
// sqlite's REFERENCES clauses here carry no ON DELETE CASCADE, so the
// cascade is done explicitly in one transaction rather than relying on the
// schema, matching the teacher's style of keeping cascade logic visible in
// Go rather than buried in DDL.
func (repo *ScoutRepo) Delete(ctx context.Context, id int64) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Delete: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE scout_id = ?`, id); err != nil {
		return fmt.Errorf("Delete: feedback: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calibrations WHERE scout_id = ?`, id); err != nil {
		return fmt.Errorf("Delete: calibrations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: scouts: %w", err)
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

func (repo *ScoutRepo) TouchLastFiredAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE scouts SET last_fired_at = ? WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, query, t, id)
	if err != nil {
		return fmt.Errorf("TouchLastFiredAt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("TouchLastFiredAt: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
