package platform

import (
	"context"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// PatchCardClient delivers patch cards and cycle summaries to one platform.
type PatchCardClient interface {
	// Name identifies the platform in logs.
	Name() string

	// SendPatchCard posts a rendered card and returns the platform's
	// message and channel ids.
	SendPatchCard(ctx context.Context, card *domain.PatchCard) (messageID, channelID string, err error)

	// SendSubsystemUpdate posts a per-subsystem cycle summary, showing at
	// most maxEntries entries.
	SendSubsystemUpdate(ctx context.Context, result domain.SubsystemResult, maxEntries int) error
}

// ThreadClient is the thread contract. Platforms without a real thread
// concept implement it as best-effort notifications: they return an empty
// thread id from CreateThread, empty maps from SendThreadOverview, and true
// from the boolean operations.
type ThreadClient interface {
	Name() string
	CreateThread(ctx context.Context, name, anchorMessageID string) (threadID string, alreadyExists bool, err error)
	ThreadExists(ctx context.Context, threadID string) (bool, error)
	DeleteThread(ctx context.Context, threadID string) error
	SendThreadOverview(ctx context.Context, threadID string, data *domain.ThreadOverviewData) (map[int]string, error)
	UpdateThreadOverview(ctx context.Context, threadID, messageID string, sub domain.SubPatchOverview) (bool, error)
	SendThreadUpdateNotification(ctx context.Context, channelID, threadID, patchCardMessageID string) error
}
