package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// FilterRepo stores patch-card filter rule groups.
type FilterRepo struct{ db *sql.DB }

// NewFilterRepo creates a Postgres-backed filter repository.
func NewFilterRepo(db *sql.DB) *FilterRepo { return &FilterRepo{db: db} }

const filterColumns = `
	id, name, enabled, filter_conditions,
	COALESCE(description,''), COALESCE(created_by,''), created_at`

func scanFilter(row interface{ Scan(...any) error }) (*domain.PatchCardFilter, error) {
	f := &domain.PatchCardFilter{}
	var conditions []byte
	err := row.Scan(&f.ID, &f.Name, &f.Enabled, &conditions, &f.Description, &f.CreatedBy, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &f.Conditions); err != nil {
		return nil, fmt.Errorf("decode filter_conditions: %w", err)
	}
	return f, nil
}

// FindAll returns rule groups ordered by created_at then id, so matched
// filter name lists stay stable across evaluations.
func (r *FilterRepo) FindAll(ctx context.Context, enabledOnly bool) ([]domain.PatchCardFilter, error) {
	q := `SELECT ` + filterColumns + ` FROM patch_card_filters`
	if enabledOnly {
		q += ` WHERE enabled`
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()

	var out []domain.PatchCardFilter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// FindByName returns (nil, nil) when no rule group has the name.
func (r *FilterRepo) FindByName(ctx context.Context, name string) (*domain.PatchCardFilter, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+filterColumns+` FROM patch_card_filters WHERE name = $1`, name)
	f, err := scanFilter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find filter: %w", err)
	}
	return f, nil
}

// FindByID returns (nil, nil) when the id is unknown.
func (r *FilterRepo) FindByID(ctx context.Context, id int64) (*domain.PatchCardFilter, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+filterColumns+` FROM patch_card_filters WHERE id = $1`, id)
	f, err := scanFilter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find filter: %w", err)
	}
	return f, nil
}

// Create inserts a rule group.
func (r *FilterRepo) Create(ctx context.Context, f *domain.PatchCardFilter) (int64, error) {
	conditions, err := json.Marshal(f.Conditions)
	if err != nil {
		return 0, fmt.Errorf("encode filter_conditions: %w", err)
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO patch_card_filters (name, enabled, filter_conditions, description, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		RETURNING id
	`, f.Name, f.Enabled, conditions, nullable(f.Description), nullable(f.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create filter: %w", err)
	}
	return id, nil
}

// Update replaces a rule group's mutable fields.
func (r *FilterRepo) Update(ctx context.Context, id int64, f *domain.PatchCardFilter) error {
	conditions, err := json.Marshal(f.Conditions)
	if err != nil {
		return fmt.Errorf("encode filter_conditions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE patch_card_filters
		SET enabled = $1, filter_conditions = $2, description = $3, created_by = $4
		WHERE id = $5
	`, f.Enabled, conditions, nullable(f.Description), nullable(f.CreatedBy), id)
	if err != nil {
		return fmt.Errorf("update filter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update filter: no filter %d", id)
	}
	return nil
}

// Delete removes a rule group, reporting whether a row was deleted.
func (r *FilterRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patch_card_filters WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete filter: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ToggleEnabled sets the enabled flag.
func (r *FilterRepo) ToggleEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_card_filters SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("toggle filter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("toggle filter: no filter %d", id)
	}
	return nil
}

// FilterConfigRepo stores the single-row global filter configuration as
// key/value pairs.
type FilterConfigRepo struct{ db *sql.DB }

// NewFilterConfigRepo creates a Postgres-backed filter config repository.
func NewFilterConfigRepo(db *sql.DB) *FilterConfigRepo { return &FilterConfigRepo{db: db} }

const exclusiveModeKey = "exclusive_mode"

// ExclusiveMode returns the global exclusive-mode flag, defaulting to
// false when unset.
func (r *FilterConfigRepo) ExclusiveMode(ctx context.Context) (bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM filter_config WHERE key = $1`, exclusiveModeKey).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read exclusive_mode: %w", err)
	}
	return value == "true", nil
}

// SetExclusiveMode upserts the global exclusive-mode flag.
func (r *FilterConfigRepo) SetExclusiveMode(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO filter_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, exclusiveModeKey, value)
	if err != nil {
		return fmt.Errorf("set exclusive_mode: %w", err)
	}
	return nil
}
