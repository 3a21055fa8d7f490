package thread

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// Repository is the persistence contract for patch threads. Find-style
// methods return (nil, nil) when no row matches.
type Repository interface {
	FindByCardHeader(ctx context.Context, patchCardMessageIDHeader string) (*domain.PatchThread, error)
	Create(ctx context.Context, t *domain.PatchThread) (int64, error)
	MarkInactive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	UpdateSubPatchMessages(ctx context.Context, id int64, subPatchMessages map[int]string) error
}

// MessageStore reads feed messages for hierarchy reconstruction.
// FindRepliesTo matches rows whose in_reply_to_header contains the given id
// as a substring, ordered by received_at ascending.
type MessageStore interface {
	FindByMessageIDHeader(ctx context.Context, messageIDHeader string) (*domain.FeedMessage, error)
	FindRepliesTo(ctx context.Context, messageIDHeader string, limit int) ([]domain.FeedMessage, error)
}

// CardService is the slice of the patch-card service the thread service
// needs: card resolution and creation for the watch path, plus the
// has_thread flag.
type CardService interface {
	FindCard(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error)
	EnsureCard(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error)
	GetCardWithSeriesData(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error)
	MarkHasThread(ctx context.Context, messageIDHeader string) error
}

// ThreadSender is the platform contract for threads. Platforms without a
// real thread concept implement it as best-effort notifications, returning
// empty maps and true for the non-applicable operations.
type ThreadSender interface {
	CreateThread(ctx context.Context, name, anchorMessageID string) (threadID string, alreadyExists bool, err error)
	ThreadExists(ctx context.Context, threadID string) (bool, error)
	DeleteThread(ctx context.Context, threadID string) error
	SendThreadOverview(ctx context.Context, threadID string, data *domain.ThreadOverviewData) (map[int]string, error)
	UpdateThreadOverview(ctx context.Context, threadID, messageID string, sub domain.SubPatchOverview) (bool, error)
	SendThreadUpdateNotification(ctx context.Context, channelID, threadID, patchCardMessageID string) error
}
