package thread

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

const maxThreadNameLen = 100

// Service orchestrates thread creation and overview maintenance. It
// implements the feed pipeline's REPLY handler.
type Service struct {
	threads  Repository
	messages MessageStore
	cards    CardService
	sender   ThreadSender
}

// NewService creates a thread service.
func NewService(threads Repository, messages MessageStore, cards CardService, sender ThreadSender) *Service {
	return &Service{threads: threads, messages: messages, cards: cards, sender: sender}
}

// Watch creates (or recreates) the discussion thread for the patch named by
// messageIDHeader. A sub-patch id resolves to its cover letter; the card is
// created from the stored feed message when it does not exist yet.
// ErrThreadExists is returned when an active thread is already confirmed on
// the platform.
func (s *Service) Watch(ctx context.Context, messageIDHeader string) (*domain.PatchThread, error) {
	cardHeader, err := s.resolveCardHeader(ctx, messageIDHeader)
	if err != nil {
		return nil, err
	}

	card, err := s.cards.EnsureCard(ctx, cardHeader)
	if err != nil {
		return nil, err
	}
	if card.PlatformMessageID == "" {
		return nil, ErrNoPlatformMessage
	}

	existing, err := s.threads.FindByCardHeader(ctx, card.MessageIDHeader)
	if err != nil {
		return nil, fmt.Errorf("find thread for %s: %w", card.MessageIDHeader, err)
	}
	if existing != nil {
		if existing.IsActive {
			alive, err := s.sender.ThreadExists(ctx, existing.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("check thread %s: %w", existing.ThreadID, err)
			}
			if alive {
				return existing, ErrThreadExists
			}
			// The platform lost the thread; retire the record and rebuild.
			if err := s.threads.MarkInactive(ctx, existing.ID); err != nil {
				return nil, fmt.Errorf("mark thread inactive: %w", err)
			}
		}
		if _, err := s.threads.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("delete stale thread: %w", err)
		}
	}

	return s.createThread(ctx, card)
}

func (s *Service) resolveCardHeader(ctx context.Context, messageIDHeader string) (string, error) {
	card, err := s.cards.FindCard(ctx, messageIDHeader)
	if err != nil {
		return "", fmt.Errorf("find patch card %s: %w", messageIDHeader, err)
	}
	if card != nil {
		return card.MessageIDHeader, nil
	}

	msg, err := s.messages.FindByMessageIDHeader(ctx, messageIDHeader)
	if err != nil {
		return "", fmt.Errorf("find feed message %s: %w", messageIDHeader, err)
	}
	if msg == nil {
		return "", ErrCardNotFound
	}
	if msg.IsSeriesPatch && !msg.IsCoverLetter && msg.SeriesMessageID != "" {
		return msg.SeriesMessageID, nil
	}
	return msg.MessageIDHeader, nil
}

func (s *Service) createThread(ctx context.Context, card *domain.PatchCard) (*domain.PatchThread, error) {
	threadID, alreadyExists, err := s.sender.CreateThread(ctx, threadName(card.Subject), card.PlatformMessageID)
	if err != nil {
		return nil, fmt.Errorf("create thread for %s: %w", card.MessageIDHeader, err)
	}
	if alreadyExists {
		return nil, ErrThreadExists
	}

	data, err := s.PrepareOverview(ctx, card)
	if err != nil {
		return nil, err
	}

	subMessages, err := s.sender.SendThreadOverview(ctx, threadID, data)
	if err != nil {
		return nil, fmt.Errorf("send thread overview %s: %w", threadID, err)
	}

	t := &domain.PatchThread{
		PatchCardMessageIDHeader: card.MessageIDHeader,
		ThreadID:                 threadID,
		ThreadName:               threadName(card.Subject),
		IsActive:                 true,
		SubPatchMessages:         subMessages,
	}
	id, err := s.threads.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("persist thread %s: %w", threadID, err)
	}
	t.ID = id

	if err := s.cards.MarkHasThread(ctx, card.MessageIDHeader); err != nil {
		log.Printf("[ThreadService] Failed to mark has_thread for %s: %v", card.MessageIDHeader, err)
	}

	log.Printf("[ThreadService] Created thread %s for %s", threadID, card.MessageIDHeader)
	return t, nil
}

// PrepareOverview builds the full render input for a card's thread: replies
// and hierarchy for the card itself, plus one sub-patch overview per series
// member (or a single entry at index 1 for a standalone PATCH).
func (s *Service) PrepareOverview(ctx context.Context, card *domain.PatchCard) (*domain.ThreadOverviewData, error) {
	if card.IsSeriesPatch && len(card.SeriesPatches) == 0 {
		full, err := s.cards.GetCardWithSeriesData(ctx, card.MessageIDHeader)
		if err != nil {
			return nil, err
		}
		card = full
	}

	replies, hierarchy, err := BuildReplyHierarchy(ctx, s.messages, card.MessageIDHeader)
	if err != nil {
		return nil, err
	}

	data := &domain.ThreadOverviewData{Card: card, Replies: replies, Hierarchy: hierarchy}

	if card.IsSeriesPatch {
		for _, p := range card.SeriesPatches {
			sub, err := s.PrepareSubPatchOverview(ctx, p)
			if err != nil {
				return nil, err
			}
			data.SubPatchOverviews = append(data.SubPatchOverviews, sub)
		}
	} else {
		sub, err := s.PrepareSubPatchOverview(ctx, domain.SeriesPatchInfo{
			Subject:    card.Subject,
			URL:        card.URL,
			MessageID:  card.MessageIDHeader,
			PatchIndex: 1,
			PatchTotal: 1,
		})
		if err != nil {
			return nil, err
		}
		data.SubPatchOverviews = append(data.SubPatchOverviews, sub)
	}
	return data, nil
}

// PrepareSubPatchOverview rebuilds one sub-patch's overview against that
// sub-patch's own message id, so replies to patch N appear only in patch
// N's tree.
func (s *Service) PrepareSubPatchOverview(ctx context.Context, patch domain.SeriesPatchInfo) (domain.SubPatchOverview, error) {
	replies, hierarchy, err := BuildReplyHierarchy(ctx, s.messages, patch.MessageID)
	if err != nil {
		return domain.SubPatchOverview{}, err
	}
	return domain.SubPatchOverview{Patch: patch, Replies: replies, Hierarchy: hierarchy}, nil
}

// ProcessReply routes a newly ingested REPLY to the thread overview message
// of the sub-patch it answers and re-renders just that message. Replies
// that reach no watched card are silently ignored.
func (s *Service) ProcessReply(ctx context.Context, msg *domain.FeedMessage) error {
	if msg.InReplyToHeader == "" {
		return nil
	}

	card, err := s.findCardForReply(ctx, msg)
	if err != nil {
		return err
	}
	if card == nil {
		return nil
	}

	t, err := s.threads.FindByCardHeader(ctx, card.MessageIDHeader)
	if err != nil {
		return fmt.Errorf("find thread for %s: %w", card.MessageIDHeader, err)
	}
	if t == nil || !t.IsActive {
		return nil
	}

	patch, ok, err := s.targetSubPatch(ctx, card, msg)
	if err != nil || !ok {
		return err
	}

	platformMessageID, ok := t.SubPatchMessages[patch.PatchIndex]
	if !ok || platformMessageID == "" {
		log.Printf("[ThreadService] No overview message for patch %d of %s", patch.PatchIndex, card.MessageIDHeader)
		return nil
	}

	sub, err := s.PrepareSubPatchOverview(ctx, patch)
	if err != nil {
		return err
	}

	updated, err := s.sender.UpdateThreadOverview(ctx, t.ThreadID, platformMessageID, sub)
	if err != nil {
		return fmt.Errorf("update thread overview %s: %w", t.ThreadID, err)
	}
	if !updated {
		return nil
	}

	if err := s.sender.SendThreadUpdateNotification(ctx, card.PlatformChannelID, t.ThreadID, card.PlatformMessageID); err != nil {
		log.Printf("[ThreadService] Failed to send thread update notification for %s: %v", card.MessageIDHeader, err)
	}
	return nil
}

// findCardForReply matches the reply's parent id directly against a card,
// then via the parent sub-patch's series id. Returns (nil, nil) when the
// reply reaches no card.
func (s *Service) findCardForReply(ctx context.Context, msg *domain.FeedMessage) (*domain.PatchCard, error) {
	parent := extractMessageID(msg.InReplyToHeader)
	if parent == "" {
		return nil, nil
	}

	card, err := s.cards.FindCard(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("find patch card %s: %w", parent, err)
	}
	if card != nil {
		return card, nil
	}

	sub, err := s.messages.FindByMessageIDHeader(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("find feed message %s: %w", parent, err)
	}
	if sub == nil || sub.SeriesMessageID == "" {
		return nil, nil
	}
	card, err = s.cards.FindCard(ctx, sub.SeriesMessageID)
	if err != nil {
		return nil, fmt.Errorf("find patch card %s: %w", sub.SeriesMessageID, err)
	}
	return card, nil
}

// targetSubPatch picks which overview slot the reply belongs to: slot 1 for
// a standalone PATCH, else the series member whose message id appears
// inside the reply's In-Reply-To header.
func (s *Service) targetSubPatch(ctx context.Context, card *domain.PatchCard, msg *domain.FeedMessage) (domain.SeriesPatchInfo, bool, error) {
	if !card.IsSeriesPatch {
		return domain.SeriesPatchInfo{
			Subject:    card.Subject,
			URL:        card.URL,
			MessageID:  card.MessageIDHeader,
			PatchIndex: 1,
			PatchTotal: 1,
		}, true, nil
	}

	full, err := s.cards.GetCardWithSeriesData(ctx, card.MessageIDHeader)
	if err != nil {
		return domain.SeriesPatchInfo{}, false, err
	}
	for _, p := range full.SeriesPatches {
		if p.MessageID != "" && strings.Contains(msg.InReplyToHeader, p.MessageID) {
			return p, true, nil
		}
	}
	return domain.SeriesPatchInfo{}, false, nil
}

func threadName(subject string) string {
	name := strings.TrimSpace(subject)
	if name == "" {
		name = "Patch discussion"
	}
	runes := []rune(name)
	if len(runes) > maxThreadNameLen {
		name = string(runes[:maxThreadNameLen-1]) + "…"
	}
	return name
}
