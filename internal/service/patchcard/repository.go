package patchcard

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// Repository is the persistence contract for patch cards. Find-style methods
// return (nil, nil) when no row matches.
type Repository interface {
	FindByMessageIDHeader(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error)
	FindBySubsystem(ctx context.Context, subsystem string, limit int) ([]domain.PatchCard, error)
	Create(ctx context.Context, card *domain.PatchCard) (int64, error)
	MarkHasThread(ctx context.Context, messageIDHeader string) error
	UpdatePlatformMessageID(ctx context.Context, messageIDHeader, platformMessageID string) error
	UpdateToCCList(ctx context.Context, messageIDHeader string, toCC []string) error
}

// MessageStore reads feed messages for card construction and series
// collation. FindSeriesPatches returns every message whose series id or own
// header equals the given id, ordered by patch index then received time.
type MessageStore interface {
	FindByMessageIDHeader(ctx context.Context, messageIDHeader string) (*domain.FeedMessage, error)
	FindSeriesPatches(ctx context.Context, seriesMessageID string) ([]domain.FeedMessage, error)
}

// FilterEngine answers whether a PATCH should become a card and which rule
// groups matched.
type FilterEngine interface {
	ShouldCreatePatchCard(ctx context.Context, msg *domain.FeedMessage) (bool, []string, error)
}

// CardSender delivers a rendered card to the configured platforms and
// returns the primary platform's message and channel ids.
type CardSender interface {
	SendPatchCard(ctx context.Context, card *domain.PatchCard) (platformMessageID, platformChannelID string, err error)
}
