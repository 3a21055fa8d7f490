package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)


// OperationLogRepo is the append-only audit log of operator actions.
type OperationLogRepo struct{ db *sql.DB }

// NewOperationLogRepo creates a Postgres-backed operation log repository.
func NewOperationLogRepo(db *sql.DB) *OperationLogRepo { return &OperationLogRepo{db: db} }

// Append writes one audit record.
func (r *OperationLogRepo) Append(ctx context.Context, e *domain.OperationLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operation_logs
			(operator_id, operator_name, action, target_name, subsystem_name, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
	`, nullable(e.OperatorID), nullable(e.OperatorName), e.Action,
		nullable(e.TargetName), nullable(e.SubsystemName), nullable(e.Details))
	if err != nil {
		return fmt.Errorf("append operation log: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit records.
func (r *OperationLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(operator_id,''), COALESCE(operator_name,''), action,
		       COALESCE(target_name,''), COALESCE(subsystem_name,''), COALESCE(details,''), created_at
		FROM operation_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list operation logs: %w", err)
	}
	defer rows.Close()

	var out []domain.OperationLog
	for rows.Next() {
		var e domain.OperationLog
		if err := rows.Scan(&e.ID, &e.OperatorID, &e.OperatorName, &e.Action,
			&e.TargetName, &e.SubsystemName, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
