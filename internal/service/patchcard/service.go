package patchcard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/feed"
)

// Service owns the patch-card lifecycle. It implements the feed pipeline's
// PATCH handler.
type Service struct {
	repo     Repository
	messages MessageStore
	filters  FilterEngine
	sender   CardSender
	cardTTL  time.Duration
}

// NewService creates a patch-card service. cardTTL is the advisory lifetime
// written to expires_at on new cards.
func NewService(repo Repository, messages MessageStore, filters FilterEngine, sender CardSender, cardTTL time.Duration) *Service {
	if cardTTL <= 0 {
		cardTTL = 24 * time.Hour
	}
	return &Service{repo: repo, messages: messages, filters: filters, sender: sender, cardTTL: cardTTL}
}

// ProcessPatch applies the eligibility rules to a newly ingested PATCH and
// creates a card when it qualifies. Skips are not errors; only storage or
// send failures propagate.
func (s *Service) ProcessPatch(ctx context.Context, msg *domain.FeedMessage) error {
	if msg.MessageIDHeader == "" {
		log.Printf("[PatchCardService] PATCH without message id header, skipping: %.100s", msg.Subject)
		return nil
	}

	existing, err := s.repo.FindByMessageIDHeader(ctx, msg.MessageIDHeader)
	if err != nil {
		return fmt.Errorf("find patch card %s: %w", msg.MessageIDHeader, err)
	}
	if existing != nil {
		return nil
	}

	// Only the cover letter of a series is surfaced.
	if msg.IsSeriesPatch && !msg.IsCoverLetter {
		return nil
	}

	create, matched, err := s.filters.ShouldCreatePatchCard(ctx, msg)
	if err != nil {
		return fmt.Errorf("evaluate filters for %s: %w", msg.MessageIDHeader, err)
	}
	if !create {
		log.Printf("[PatchCardService] Filtered out: %s (%s)", msg.MessageIDHeader, msg.Subject)
		return nil
	}

	_, err = s.createAndSend(ctx, msg, matched)
	return err
}

// EnsureCard returns the card for the given message id header, creating it
// from the stored feed message when it does not exist yet. Filter rules are
// not consulted: an explicit watch overrides them.
func (s *Service) EnsureCard(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error) {
	card, err := s.repo.FindByMessageIDHeader(ctx, messageIDHeader)
	if err != nil {
		return nil, fmt.Errorf("find patch card %s: %w", messageIDHeader, err)
	}
	if card != nil {
		return card, nil
	}

	msg, err := s.messages.FindByMessageIDHeader(ctx, messageIDHeader)
	if err != nil {
		return nil, fmt.Errorf("find feed message %s: %w", messageIDHeader, err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if !msg.IsPatch {
		return nil, ErrNotAPatch
	}

	return s.createAndSend(ctx, msg, nil)
}

// createAndSend builds the card, collates series members for a cover
// letter, sends it to the platforms, and persists it. The card is not
// persisted when the primary send fails.
func (s *Service) createAndSend(ctx context.Context, msg *domain.FeedMessage, matched []string) (*domain.PatchCard, error) {
	now := time.Now().UTC()
	card := &domain.PatchCard{
		MessageIDHeader: msg.MessageIDHeader,
		SubsystemName:   msg.SubsystemName,
		Subject:         msg.Subject,
		Author:          msg.Author,
		URL:             msg.URL,
		IsSeriesPatch:   msg.IsSeriesPatch,
		SeriesMessageID: msg.SeriesMessageID,
		PatchVersion:    msg.PatchVersion,
		PatchIndex:      msg.PatchIndex,
		PatchTotal:      msg.PatchTotal,
		IsCoverLetter:   msg.IsCoverLetter,
		ExpiresAt:       now.Add(s.cardTTL),
		CreatedAt:       now,
		MatchedFilters:  matched,
	}

	if msg.IsCoverLetter {
		series, err := s.GetSeriesPatches(ctx, msg.MessageIDHeader)
		if err != nil {
			log.Printf("[PatchCardService] Failed to collate series for %s: %v", msg.MessageIDHeader, err)
		} else {
			card.SeriesPatches = series
		}
	}

	messageID, channelID, err := s.sender.SendPatchCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("send patch card %s: %w", card.MessageIDHeader, err)
	}
	card.PlatformMessageID = messageID
	card.PlatformChannelID = channelID

	id, err := s.repo.Create(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("create patch card %s: %w", card.MessageIDHeader, err)
	}
	card.ID = id

	log.Printf("[PatchCardService] Created patch card: %s (%s)", card.MessageIDHeader, card.Subject)
	return card, nil
}

// GetSeriesPatches collates the currently known sub-patches of a series,
// excluding the cover letter itself, sorted by patch index. Index and total
// are re-parsed from the subject when the stored row predates series
// classification.
func (s *Service) GetSeriesPatches(ctx context.Context, seriesMessageID string) ([]domain.SeriesPatchInfo, error) {
	rows, err := s.messages.FindSeriesPatches(ctx, seriesMessageID)
	if err != nil {
		return nil, fmt.Errorf("find series patches %s: %w", seriesMessageID, err)
	}

	var out []domain.SeriesPatchInfo
	for _, m := range rows {
		if m.MessageIDHeader == seriesMessageID {
			continue
		}
		index, total := m.PatchIndex, m.PatchTotal
		if total == 0 {
			info := feed.ParsePatchSubject(m.Subject)
			index, total = info.Index, info.Total
		}
		if index == 0 {
			continue
		}
		out = append(out, domain.SeriesPatchInfo{
			Subject:    m.Subject,
			URL:        m.URL,
			MessageID:  m.MessageIDHeader,
			PatchIndex: index,
			PatchTotal: total,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PatchIndex < out[j].PatchIndex })
	return out, nil
}

// GetCardWithSeriesData fetches a card and attaches a fresh series-patches
// listing for series cards.
func (s *Service) GetCardWithSeriesData(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error) {
	card, err := s.repo.FindByMessageIDHeader(ctx, messageIDHeader)
	if err != nil {
		return nil, fmt.Errorf("find patch card %s: %w", messageIDHeader, err)
	}
	if card == nil {
		return nil, ErrNotFound
	}
	if card.IsSeriesPatch {
		series, err := s.GetSeriesPatches(ctx, card.MessageIDHeader)
		if err != nil {
			return nil, err
		}
		card.SeriesPatches = series
	}
	return card, nil
}

// FindCard looks a card up without deriving anything. Returns (nil, nil)
// when absent.
func (s *Service) FindCard(ctx context.Context, messageIDHeader string) (*domain.PatchCard, error) {
	return s.repo.FindByMessageIDHeader(ctx, messageIDHeader)
}

// ListBySubsystem returns recent cards for one subsystem.
func (s *Service) ListBySubsystem(ctx context.Context, subsystem string, limit int) ([]domain.PatchCard, error) {
	return s.repo.FindBySubsystem(ctx, subsystem, limit)
}

// MarkHasThread flags the card as having a discussion thread.
func (s *Service) MarkHasThread(ctx context.Context, messageIDHeader string) error {
	return s.repo.MarkHasThread(ctx, messageIDHeader)
}

// UpdatePlatformMessageID replaces the primary platform message id, used
// when a card message is re-sent.
func (s *Service) UpdatePlatformMessageID(ctx context.Context, messageIDHeader, platformMessageID string) error {
	return s.repo.UpdatePlatformMessageID(ctx, messageIDHeader, platformMessageID)
}

// UpdateToCCList caches the series root's To+CC addresses on the card.
func (s *Service) UpdateToCCList(ctx context.Context, messageIDHeader string, toCC []string) error {
	return s.repo.UpdateToCCList(ctx, messageIDHeader, toCC)
}
