package subsystem

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// Operator identifies who performed a user-initiated action, for the audit
// log.
type Operator struct {
	ID   string
	Name string
}

// Service manages subsystem subscriptions. It also backs the feed pipeline:
// ListSubscribed drives the poll cycle and GetOrCreate registers subsystems
// seen in feeds.
type Service struct {
	repo Repository
	logs OperationLogRepository
}

// NewService creates a subsystem service. logs may be nil to disable audit
// logging.
func NewService(repo Repository, logs OperationLogRepository) *Service {
	return &Service{repo: repo, logs: logs}
}

// Subscribe marks the named subsystems as subscribed, creating unknown ones,
// and returns the names actually changed.
func (s *Service) Subscribe(ctx context.Context, op Operator, names []string) ([]string, error) {
	var changed []string
	for _, name := range normalizeNames(names) {
		sub, err := s.repo.GetOrCreate(ctx, name)
		if err != nil {
			return changed, fmt.Errorf("get or create subsystem %s: %w", name, err)
		}
		if sub.Subscribed {
			continue
		}
		if err := s.repo.SetSubscribed(ctx, name, true); err != nil {
			return changed, fmt.Errorf("subscribe %s: %w", name, err)
		}
		changed = append(changed, name)
		s.audit(ctx, op, domain.ActionSubscribe, name)
	}
	return changed, nil
}

// Unsubscribe clears the subscribed flag on the named subsystems and
// returns the names actually changed. Unknown names are skipped.
func (s *Service) Unsubscribe(ctx context.Context, op Operator, names []string) ([]string, error) {
	var changed []string
	for _, name := range normalizeNames(names) {
		sub, err := s.repo.Find(ctx, name)
		if err != nil {
			return changed, fmt.Errorf("find subsystem %s: %w", name, err)
		}
		if sub == nil || !sub.Subscribed {
			continue
		}
		if err := s.repo.SetSubscribed(ctx, name, false); err != nil {
			return changed, fmt.Errorf("unsubscribe %s: %w", name, err)
		}
		changed = append(changed, name)
		s.audit(ctx, op, domain.ActionUnsubscribe, name)
	}
	return changed, nil
}

// List returns subsystems, optionally only subscribed ones.
func (s *Service) List(ctx context.Context, subscribedOnly bool) ([]domain.Subsystem, error) {
	return s.repo.List(ctx, subscribedOnly)
}

// Search returns subsystems whose name contains the keyword.
func (s *Service) Search(ctx context.Context, keyword string) ([]domain.Subsystem, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	return s.repo.Search(ctx, keyword)
}

// GetOrCreate registers a subsystem name if needed and returns it.
func (s *Service) GetOrCreate(ctx context.Context, name string) (*domain.Subsystem, error) {
	return s.repo.GetOrCreate(ctx, name)
}

// ListSubscribed returns the names of all subscribed subsystems.
func (s *Service) ListSubscribed(ctx context.Context) ([]string, error) {
	subs, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(subs))
	for _, sub := range subs {
		names = append(names, sub.Name)
	}
	return names, nil
}

// RecordAction appends an audit entry for actions owned by other services
// (monitor control, watch).
func (s *Service) RecordAction(ctx context.Context, op Operator, action, target string) {
	s.audit(ctx, op, action, target)
}

// RecentOperations returns the newest audit entries.
func (s *Service) RecentOperations(ctx context.Context, limit int) ([]domain.OperationLog, error) {
	if s.logs == nil {
		return nil, nil
	}
	return s.logs.ListRecent(ctx, limit)
}

// audit is best-effort: a failed log write never fails the operation.
func (s *Service) audit(ctx context.Context, op Operator, action, target string) {
	if s.logs == nil {
		return
	}
	entry := &domain.OperationLog{
		OperatorID:    op.ID,
		OperatorName:  op.Name,
		Action:        action,
		TargetName:    target,
		SubsystemName: target,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		log.Printf("[SubsystemService] Failed to write operation log (%s %s): %v", action, target, err)
	}
}

func normalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
