package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// MessageStore persists feed messages for the processor.
type MessageStore interface {
	// Upsert inserts the message or, when a row with the same
	// message_id_header already exists, updates its derived fields.
	Upsert(ctx context.Context, msg *domain.FeedMessage) (*domain.FeedMessage, error)
	// LatestReceivedAt returns MAX(received_at) for a subsystem, or the
	// zero time when the subsystem has no messages yet.
	LatestReceivedAt(ctx context.Context, subsystem string) (time.Time, error)
}

// SubsystemStore resolves subsystem rows for the processor.
type SubsystemStore interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Subsystem, error)
}

// PatchHandler receives phase-2 PATCH side-effects.
type PatchHandler interface {
	ProcessPatch(ctx context.Context, msg *domain.FeedMessage) error
}

// ReplyHandler receives phase-2 REPLY side-effects.
type ReplyHandler interface {
	ProcessReply(ctx context.Context, msg *domain.FeedMessage) error
}

// Processor handles one subsystem's feed per call: fetch, classify, persist,
// then apply PATCH/REPLY side-effects. Persisting every message before any
// side-effect runs is load-bearing: a cover letter arriving after its
// sub-patches must still find them when it collates its series listing.
type Processor struct {
	fetcher    *Fetcher
	messages   MessageStore
	subsystems SubsystemStore
	patches    PatchHandler
	replies    ReplyHandler

	// High-water mark, shared across subsystems within the process. Only
	// entries strictly newer than the mark are processed; the mark advances
	// after each successful pass so a slow cycle cannot resurface entries.
	mu           sync.Mutex
	lastUpdateAt time.Time
	markSet      bool

	// overrideISO, when non-empty, wins over the database maximum at
	// initialization (ISO-8601, trailing Z accepted).
	overrideISO string
}

// NewProcessor creates a feed processor. overrideISO may be empty.
func NewProcessor(fetcher *Fetcher, messages MessageStore, subsystems SubsystemStore,
	patches PatchHandler, replies ReplyHandler, overrideISO string) *Processor {
	return &Processor{
		fetcher:     fetcher,
		messages:    messages,
		subsystems:  subsystems,
		patches:     patches,
		replies:     replies,
		overrideISO: overrideISO,
	}
}

// ProcessFeed runs one pass for a subsystem and returns its counts.
func (p *Processor) ProcessFeed(ctx context.Context, subsystemName, feedURL string) (domain.SubsystemResult, error) {
	result := domain.SubsystemResult{Subsystem: subsystemName, Entries: []domain.FeedEntrySummary{}}
	start := time.Now()
	log.Printf("[FeedProcessor] Processing feed for subsystem: %s", subsystemName)

	mark, err := p.currentMark(ctx, subsystemName)
	if err != nil {
		return result, err
	}

	parsed, err := p.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return result, err
	}

	entries := p.selectNewEntries(subsystemName, parsed.Items, mark)
	if len(entries) == 0 {
		log.Printf("[FeedProcessor] No new entries found for %s", subsystemName)
		return result, nil
	}

	if _, err := p.subsystems.GetOrCreate(ctx, subsystemName); err != nil {
		return result, fmt.Errorf("get or create subsystem %s: %w", subsystemName, err)
	}

	// Phase 1: persist every message before any side-effect runs.
	persisted := make([]*domain.FeedMessage, 0, len(entries))
	for _, entry := range entries {
		msg := buildFeedMessage(subsystemName, entry)
		saved, err := p.messages.Upsert(ctx, msg)
		if err != nil {
			return result, fmt.Errorf("persist feed message %s: %w", entry.MessageIDHeader, err)
		}
		persisted = append(persisted, saved)

		if saved.IsReply {
			result.ReplyCount++
		} else {
			result.NewCount++
		}
		result.Entries = append(result.Entries, domain.FeedEntrySummary{
			Subject:     saved.Subject,
			Author:      saved.Author,
			AuthorEmail: saved.AuthorEmail,
			URL:         saved.URL,
			ReceivedAt:  saved.ReceivedAt,
			IsPatch:     saved.IsPatch,
			IsReply:     saved.IsReply,
		})
	}

	// Phase 2: PATCH/REPLY side-effects. Failures are logged and do not
	// roll back phase 1; the next arrival re-converges state.
	for _, msg := range persisted {
		switch {
		case msg.IsPatch:
			if err := p.patches.ProcessPatch(ctx, msg); err != nil {
				log.Printf("[FeedProcessor] PATCH side-effect failed for %s: %v", msg.MessageIDHeader, err)
			}
		case msg.IsReply:
			if err := p.replies.ProcessReply(ctx, msg); err != nil {
				log.Printf("[FeedProcessor] REPLY side-effect failed for %s: %v", msg.MessageIDHeader, err)
			}
		}
	}

	p.advanceMark(entries)

	log.Printf("[FeedProcessor] Processed %d entries for %s: %d new, %d replies, took %d ms",
		len(entries), subsystemName, result.NewCount, result.ReplyCount, time.Since(start).Milliseconds())
	return result, nil
}

// selectNewEntries walks the newest-first feed and keeps entries above the
// high-water mark. Entries without a parseable timestamp are conservatively
// treated as new; the walk stops at the first entry at or below the mark.
func (p *Processor) selectNewEntries(subsystem string, items []*gofeed.Item, mark time.Time) []ParsedEntry {
	var out []ParsedEntry
	for _, item := range items {
		entry := ParseEntry(subsystem, item)
		if !entry.HasTimestamp {
			out = append(out, entry)
			continue
		}
		if entry.ReceivedAt.After(mark) {
			out = append(out, entry)
		} else {
			break
		}
	}
	return out
}

// currentMark lazily initializes the high-water mark: env override first,
// then the database maximum for the subsystem, then the current time.
func (p *Processor) currentMark(ctx context.Context, subsystem string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.markSet {
		return p.lastUpdateAt, nil
	}

	if p.overrideISO != "" {
		if ts, err := parseISOTime(p.overrideISO); err == nil {
			p.lastUpdateAt = ts
			p.markSet = true
			log.Printf("[FeedProcessor] High-water mark from override: %s", ts.Format(time.RFC3339))
			return p.lastUpdateAt, nil
		}
		log.Printf("[FeedProcessor] Invalid LAST_UPDATE_AT override %q, falling back", p.overrideISO)
	}

	latest, err := p.messages.LatestReceivedAt(ctx, subsystem)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest received_at: %w", err)
	}
	if !latest.IsZero() {
		p.lastUpdateAt = latest
	} else {
		p.lastUpdateAt = time.Now().UTC()
	}
	p.markSet = true
	return p.lastUpdateAt, nil
}

// advanceMark moves the mark to the newest processed entry. The feed is
// newest-first so the first entry with a timestamp wins.
func (p *Processor) advanceMark(entries []ParsedEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range entries {
		if entry.HasTimestamp {
			if entry.ReceivedAt.After(p.lastUpdateAt) {
				p.lastUpdateAt = entry.ReceivedAt
			}
			return
		}
	}
}

// parseISOTime accepts ISO-8601 with an optional trailing Z and treats naive
// timestamps as UTC.
func parseISOTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

// buildFeedMessage denormalizes one parsed entry plus its classification
// into the persisted FeedMessage shape.
func buildFeedMessage(subsystem string, entry ParsedEntry) *domain.FeedMessage {
	cls := Classify(entry.Subject, entry.InReplyToHeader, entry.MessageIDHeader)

	msg := &domain.FeedMessage{
		SubsystemName:   subsystem,
		MessageID:       entry.MessageID,
		MessageIDHeader: entry.MessageIDHeader,
		InReplyToHeader: entry.InReplyToHeader,
		Subject:         entry.Subject,
		Author:          entry.Author,
		AuthorEmail:     entry.AuthorEmail,
		Content:         entry.Content,
		URL:             entry.URL,
		ReceivedAt:      entry.ReceivedAt,
		IsPatch:         cls.IsPatch,
		IsReply:         cls.IsReply,
		IsSeriesPatch:   cls.IsSeriesPatch,
		SeriesMessageID: cls.SeriesMessageID,
	}
	if msg.AuthorEmail == "" {
		msg.AuthorEmail = "unknown@example.com"
	}
	if cls.PatchInfo != nil {
		msg.PatchVersion = cls.PatchInfo.Version
		msg.PatchIndex = cls.PatchInfo.Index
		msg.PatchTotal = cls.PatchInfo.Total
		msg.IsCoverLetter = cls.PatchInfo.IsCoverLetter
	}
	return msg
}
