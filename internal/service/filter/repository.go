package filter

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// Repository is the persistence contract for filter rule groups.
// Find-style methods return (nil, nil) when no row matches; FindAll returns
// rows ordered by created_at then id so matched-filter lists are stable.
type Repository interface {
	FindAll(ctx context.Context, enabledOnly bool) ([]domain.PatchCardFilter, error)
	FindByName(ctx context.Context, name string) (*domain.PatchCardFilter, error)
	FindByID(ctx context.Context, id int64) (*domain.PatchCardFilter, error)
	Create(ctx context.Context, f *domain.PatchCardFilter) (int64, error)
	Update(ctx context.Context, id int64, f *domain.PatchCardFilter) error
	Delete(ctx context.Context, id int64) (bool, error)
	ToggleEnabled(ctx context.Context, id int64, enabled bool) error
}

// ConfigRepository stores the single-row global filter configuration.
type ConfigRepository interface {
	ExclusiveMode(ctx context.Context) (bool, error)
	SetExclusiveMode(ctx context.Context, enabled bool) error
}

// CardStore looks up existing patch cards, used to read the cached To+CC
// list of a series root. Returns (nil, nil) when no card exists.
type CardStore interface {
	FindByMessageIDHeader(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error)
}

// MessageStore looks up feed messages, used to resolve the series root URL
// for a sub-patch. Returns (nil, nil) when no message exists.
type MessageStore interface {
	FindByMessageIDHeader(ctx context.Context, messageIDHeader string) (*domain.FeedMessage, error)
}

// CCListFetcher fetches the deduplicated To+CC addresses of a message page.
type CCListFetcher interface {
	FetchCCList(ctx context.Context, rootURL string) ([]string, error)
}
