package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/logger"
)

// sendDelay spaces consecutive platform sends to stay under rate limits.
const sendDelay = 200 * time.Millisecond

// ErrNoPlatforms is returned when a send is attempted with no configured
// clients.
var ErrNoPlatforms = errors.New("no platforms configured")

// MultiPlatformSender fans each operation out to all configured platforms in
// registration order. The first client to succeed is the primary: its ids
// are what the services persist. Secondary failures are logged, never
// propagated.
type MultiPlatformSender struct {
	cards   []PatchCardClient
	threads []ThreadClient
	delay   time.Duration
}

// NewMultiPlatformSender creates a sender over the given clients.
func NewMultiPlatformSender(cards []PatchCardClient, threads []ThreadClient) *MultiPlatformSender {
	return &MultiPlatformSender{cards: cards, threads: threads, delay: sendDelay}
}

// SendPatchCard sends the card to every platform and returns the primary
// platform's message and channel ids. It fails only when every platform
// fails.
func (s *MultiPlatformSender) SendPatchCard(ctx context.Context, card *domain.PatchCard) (string, string, error) {
	if len(s.cards) == 0 {
		return "", "", ErrNoPlatforms
	}

	var primaryMsg, primaryChan string
	var firstErr error
	sent := 0
	for _, c := range s.cards {
		msgID, chanID, err := c.SendPatchCard(ctx, card)
		if err != nil {
			logger.Warn("send patch card failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if sent == 0 {
				primaryMsg, primaryChan = msgID, chanID
			}
			sent++
		}
		s.sleep(ctx)
	}
	if sent == 0 {
		return "", "", fmt.Errorf("all platforms failed: %w", firstErr)
	}
	return primaryMsg, primaryChan, nil
}

// SendSubsystemUpdate posts the cycle summary to every platform.
func (s *MultiPlatformSender) SendSubsystemUpdate(ctx context.Context, result domain.SubsystemResult, maxEntries int) error {
	var firstErr error
	for _, c := range s.cards {
		if err := c.SendSubsystemUpdate(ctx, result, maxEntries); err != nil {
			logger.Warn("send subsystem update failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		s.sleep(ctx)
	}
	return firstErr
}

// CreateThread creates the thread on every thread-capable platform. The
// first non-empty thread id is authoritative.
func (s *MultiPlatformSender) CreateThread(ctx context.Context, name, anchorMessageID string) (string, bool, error) {
	if len(s.threads) == 0 {
		return "", false, ErrNoPlatforms
	}

	var threadID string
	var exists bool
	var firstErr error
	for _, c := range s.threads {
		id, already, err := c.CreateThread(ctx, name, anchorMessageID)
		if err != nil {
			logger.Warn("create thread failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if threadID == "" && id != "" {
			threadID, exists = id, already
		}
		s.sleep(ctx)
	}
	if threadID == "" {
		if firstErr != nil {
			return "", false, firstErr
		}
		return "", false, errors.New("no platform created a thread")
	}
	return threadID, exists, nil
}

// ThreadExists asks the primary thread platform.
func (s *MultiPlatformSender) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	c := s.primaryThread()
	if c == nil {
		return false, ErrNoPlatforms
	}
	return c.ThreadExists(ctx, threadID)
}

// DeleteThread removes the thread on every platform; best-effort past the
// primary.
func (s *MultiPlatformSender) DeleteThread(ctx context.Context, threadID string) error {
	var firstErr error
	for _, c := range s.threads {
		if err := c.DeleteThread(ctx, threadID); err != nil {
			logger.Warn("delete thread failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendThreadOverview posts the overview messages and returns the first
// non-empty patch-index mapping. A notification-only platform can succeed
// with an empty map; it must not shadow a later platform's real mapping.
func (s *MultiPlatformSender) SendThreadOverview(ctx context.Context, threadID string, data *domain.ThreadOverviewData) (map[int]string, error) {
	var primary map[int]string
	var firstErr error
	succeeded := false
	for _, c := range s.threads {
		m, err := c.SendThreadOverview(ctx, threadID, data)
		if err != nil {
			logger.Warn("send thread overview failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !succeeded || (len(primary) == 0 && len(m) > 0) {
			primary = m
		}
		succeeded = true
		s.sleep(ctx)
	}
	if !succeeded && firstErr != nil {
		return nil, firstErr
	}
	return primary, nil
}

// UpdateThreadOverview re-renders one overview message on the primary
// platform; secondaries are notified best-effort.
func (s *MultiPlatformSender) UpdateThreadOverview(ctx context.Context, threadID, messageID string, sub domain.SubPatchOverview) (bool, error) {
	c := s.primaryThread()
	if c == nil {
		return false, ErrNoPlatforms
	}
	ok, err := c.UpdateThreadOverview(ctx, threadID, messageID, sub)
	if err != nil {
		return false, err
	}
	for _, secondary := range s.threads[1:] {
		if _, err := secondary.UpdateThreadOverview(ctx, threadID, messageID, sub); err != nil {
			logger.Warn("update thread overview failed", "platform", secondary.Name(), "error", err)
		}
	}
	return ok, nil
}

// SendThreadUpdateNotification notifies every platform.
func (s *MultiPlatformSender) SendThreadUpdateNotification(ctx context.Context, channelID, threadID, patchCardMessageID string) error {
	var firstErr error
	for _, c := range s.threads {
		if err := c.SendThreadUpdateNotification(ctx, channelID, threadID, patchCardMessageID); err != nil {
			logger.Warn("thread update notification failed", "platform", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		s.sleep(ctx)
	}
	return firstErr
}

func (s *MultiPlatformSender) primaryThread() ThreadClient {
	if len(s.threads) == 0 {
		return nil
	}
	return s.threads[0]
}

func (s *MultiPlatformSender) sleep(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
