package thread

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

const (
	// maxReplyIterations bounds the BFS over transitive replies.
	maxReplyIterations = 20

	// maxParentDepth bounds the recursive parent chase when attaching a
	// reply whose direct parent is outside the collected set.
	maxParentDepth = 5

	repliesPerQuery = 200
)

// extractMessageID strips angle brackets from an In-Reply-To value and
// returns its first whitespace-separated token. Multi-id headers keep only
// the first reference.
func extractMessageID(inReplyTo string) string {
	s := strings.TrimSpace(inReplyTo)
	s = strings.ReplaceAll(s, "<", " ")
	s = strings.ReplaceAll(s, ">", " ")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// collectReplies gathers the transitive reply set for one patch: BFS over
// messages whose in_reply_to_header contains any id in the frontier, capped
// at maxReplyIterations levels.
func collectReplies(ctx context.Context, store MessageStore, patchHeader string) ([]domain.FeedMessage, error) {
	seen := map[string]bool{patchHeader: true}
	frontier := []string{patchHeader}
	var collected []domain.FeedMessage

	for i := 0; i < maxReplyIterations && len(frontier) > 0; i++ {
		var next []string
		for _, id := range frontier {
			replies, err := store.FindRepliesTo(ctx, id, repliesPerQuery)
			if err != nil {
				return nil, fmt.Errorf("find replies to %s: %w", id, err)
			}
			for _, r := range replies {
				if r.MessageIDHeader == "" || seen[r.MessageIDHeader] {
					continue
				}
				seen[r.MessageIDHeader] = true
				collected = append(collected, r)
				next = append(next, r.MessageIDHeader)
			}
		}
		frontier = next
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].ReceivedAt.Before(collected[j].ReceivedAt)
	})
	return collected, nil
}

// BuildReplyHierarchy reconstructs the reply tree for one patch. Roots are
// the replies addressed to the patch itself; every other collected reply is
// attached under its parent, chasing broken chains through the store up to
// maxParentDepth hops. Roots and child lists are ordered by received time.
func BuildReplyHierarchy(ctx context.Context, store MessageStore, patchHeader string) ([]domain.FeedMessage, domain.ReplyHierarchy, error) {
	replies, err := collectReplies(ctx, store, patchHeader)
	if err != nil {
		return nil, domain.ReplyHierarchy{}, err
	}

	h := domain.ReplyHierarchy{Entries: make(map[string]*domain.ReplyEntry, len(replies))}
	for _, r := range replies {
		r := r
		h.Entries[r.MessageIDHeader] = &domain.ReplyEntry{Reply: r}
	}

	for _, r := range replies {
		parent := extractMessageID(r.InReplyToHeader)
		switch {
		case parent == patchHeader || strings.Contains(parent, patchHeader):
			h.Roots = append(h.Roots, r.MessageIDHeader)
		case h.Entries[parent] != nil:
			h.Entries[parent].Children = append(h.Entries[parent].Children, r.MessageIDHeader)
		default:
			anchor := chaseParent(ctx, store, parent, patchHeader, h.Entries)
			if anchor != "" && h.Entries[anchor] != nil {
				h.Entries[anchor].Children = append(h.Entries[anchor].Children, r.MessageIDHeader)
			} else {
				h.Roots = append(h.Roots, r.MessageIDHeader)
			}
		}
	}

	sortByReceived(h.Roots, h.Entries)
	for _, e := range h.Entries {
		sortByReceived(e.Children, h.Entries)
	}
	return replies, h, nil
}

// chaseParent follows a reply's In-Reply-To chain through the store until it
// reaches a collected reply or the patch itself. Returns the collected
// ancestor's id, or "" when the chain dead-ends within maxParentDepth hops.
func chaseParent(ctx context.Context, store MessageStore, parent, patchHeader string, entries map[string]*domain.ReplyEntry) string {
	for depth := 0; depth < maxParentDepth && parent != ""; depth++ {
		if parent == patchHeader {
			return ""
		}
		if entries[parent] != nil {
			return parent
		}
		msg, err := store.FindByMessageIDHeader(ctx, parent)
		if err != nil || msg == nil {
			return ""
		}
		parent = extractMessageID(msg.InReplyToHeader)
	}
	return ""
}

func sortByReceived(ids []string, entries map[string]*domain.ReplyEntry) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := entries[ids[i]], entries[ids[j]]
		if a == nil || b == nil {
			return false
		}
		return a.Reply.ReceivedAt.Before(b.Reply.ReceivedAt)
	})
}
