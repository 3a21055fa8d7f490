// Package api exposes the admin HTTP surface: health, monitor control,
// thread watch, subsystem subscriptions, and filter rule management.
package api

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/subsystem"
)

// MonitorController drives the background monitoring loop.
type MonitorController interface {
	Start()
	Stop()
	IsRunning() bool
	RunID() string
	Stats() map[string]int64
	RunOnce(ctx context.Context) (*domain.MonitoringResult, error)
}

// ThreadWatcher creates discussion threads on demand.
type ThreadWatcher interface {
	Watch(ctx context.Context, messageIDHeader string) (*domain.PatchThread, error)
}

// SubsystemManager manages subsystem subscriptions and the operation log.
type SubsystemManager interface {
	Subscribe(ctx context.Context, op subsystem.Operator, names []string) ([]string, error)
	Unsubscribe(ctx context.Context, op subsystem.Operator, names []string) ([]string, error)
	List(ctx context.Context, subscribedOnly bool) ([]domain.Subsystem, error)
	Search(ctx context.Context, keyword string) ([]domain.Subsystem, error)
	RecordAction(ctx context.Context, op subsystem.Operator, action, target string)
	RecentOperations(ctx context.Context, limit int) ([]domain.OperationLog, error)
}

// FilterManager manages patch card filter rule groups.
type FilterManager interface {
	CreateFilter(ctx context.Context, name string, conditions domain.FilterConditions, description, createdBy string, enabled bool) (*domain.PatchCardFilter, error)
	ListFilters(ctx context.Context, enabledOnly bool) ([]domain.PatchCardFilter, error)
	GetFilter(ctx context.Context, name string) (*domain.PatchCardFilter, error)
	DeleteFilter(ctx context.Context, name string) error
	ClearFilters(ctx context.Context) (int, error)
	ToggleFilter(ctx context.Context, name string, enabled *bool) error
	AddCondition(ctx context.Context, name, field, pattern string) (*domain.PatchCardFilter, error)
	RemoveCondition(ctx context.Context, name, field, pattern string) (*domain.PatchCardFilter, error)
	RemoveTypes(ctx context.Context, name string, fields []string) (*domain.PatchCardFilter, error)
	SupportedTypes() map[string]string
	ExclusiveMode(ctx context.Context) (bool, error)
	SetExclusiveMode(ctx context.Context, enabled bool) error
}

// Handlers bundles the HTTP handlers with their service dependencies.
type Handlers struct {
	monitor    MonitorController
	watcher    ThreadWatcher
	subsystems SubsystemManager
	filters    FilterManager
	health     *HealthChecker
}

// NewHandlers creates the handler set. health may be nil, in which case
// /health reports a bare ok.
func NewHandlers(monitor MonitorController, watcher ThreadWatcher, subsystems SubsystemManager, filters FilterManager, health *HealthChecker) *Handlers {
	return &Handlers{
		monitor:    monitor,
		watcher:    watcher,
		subsystems: subsystems,
		filters:    filters,
		health:     health,
	}
}

// operatorRequest carries the optional identity of the person issuing an
// admin operation, recorded in the operation log.
type operatorRequest struct {
	OperatorID   string `json:"operator_id"`
	OperatorName string `json:"operator_name"`
}

func (r operatorRequest) operator() subsystem.Operator {
	op := subsystem.Operator{ID: r.OperatorID, Name: r.OperatorName}
	if op.Name == "" {
		op.Name = "api"
	}
	return op
}
