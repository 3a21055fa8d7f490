package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// SubsystemRepo stores subsystem subscription state.
type SubsystemRepo struct{ db *sql.DB }

// NewSubsystemRepo creates a Postgres-backed subsystem repository.
func NewSubsystemRepo(db *sql.DB) *SubsystemRepo { return &SubsystemRepo{db: db} }

const subsystemColumns = `id, name, subscribed, created_at, updated_at`

func scanSubsystem(row interface{ Scan(...any) error }) (*domain.Subsystem, error) {
	s := &domain.Subsystem{}
	if err := row.Scan(&s.ID, &s.Name, &s.Subscribed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Find returns (nil, nil) for an unknown name.
func (r *SubsystemRepo) Find(ctx context.Context, name string) (*domain.Subsystem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subsystemColumns+` FROM subsystems WHERE name = $1`, name)
	s, err := scanSubsystem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subsystem: %w", err)
	}
	return s, nil
}

// GetOrCreate registers the name if needed and returns the row. A
// concurrent insert losing the race falls back to reading the winner.
func (r *SubsystemRepo) GetOrCreate(ctx context.Context, name string) (*domain.Subsystem, error) {
	existing, err := r.Find(ctx, name)
	if err != nil || existing != nil {
		return existing, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO subsystems (name, subscribed, created_at, updated_at)
		VALUES ($1, false, NOW(), NOW())
		RETURNING `+subsystemColumns, name)
	s, err := scanSubsystem(row)
	if err != nil {
		if isUniqueViolation(err) {
			return r.Find(ctx, name)
		}
		return nil, fmt.Errorf("create subsystem: %w", err)
	}
	return s, nil
}

// SetSubscribed flips the subscription flag.
func (r *SubsystemRepo) SetSubscribed(ctx context.Context, name string, subscribed bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subsystems SET subscribed = $1, updated_at = NOW() WHERE name = $2`, subscribed, name)
	if err != nil {
		return fmt.Errorf("set subscribed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set subscribed: no subsystem %s", name)
	}
	return nil
}

// List returns subsystems ordered by name.
func (r *SubsystemRepo) List(ctx context.Context, subscribedOnly bool) ([]domain.Subsystem, error) {
	q := `SELECT ` + subsystemColumns + ` FROM subsystems`
	if subscribedOnly {
		q += ` WHERE subscribed`
	}
	q += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list subsystems: %w", err)
	}
	defer rows.Close()

	var out []domain.Subsystem
	for rows.Next() {
		s, err := scanSubsystem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subsystem: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Search returns subsystems whose name contains the keyword.
func (r *SubsystemRepo) Search(ctx context.Context, keyword string) ([]domain.Subsystem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subsystemColumns+`
		FROM subsystems
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name ASC
	`, keyword)
	if err != nil {
		return nil, fmt.Errorf("search subsystems: %w", err)
	}
	defer rows.Close()

	var out []domain.Subsystem
	for rows.Next() {
		s, err := scanSubsystem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subsystem: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
