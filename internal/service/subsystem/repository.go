package subsystem

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// Repository is the persistence contract for subsystems. Find returns
// (nil, nil) when the name is unknown.
type Repository interface {
	Find(ctx context.Context, name string) (*domain.Subsystem, error)
	GetOrCreate(ctx context.Context, name string) (*domain.Subsystem, error)
	SetSubscribed(ctx context.Context, name string, subscribed bool) error
	List(ctx context.Context, subscribedOnly bool) ([]domain.Subsystem, error)
	Search(ctx context.Context, keyword string) ([]domain.Subsystem, error)
}

// OperationLogRepository appends to and reads the operator audit log.
type OperationLogRepository interface {
	Append(ctx context.Context, entry *domain.OperationLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.OperationLog, error)
}
