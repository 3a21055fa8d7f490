package discord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

func TestRenderCardEmbed_Series(t *testing.T) {
	card := &domain.PatchCard{
		Subject:        "[PATCH 0/2] series X",
		Author:         "Alice",
		SubsystemName:  "rust",
		URL:            "https://lore.kernel.org/rust/cov@x/",
		PatchVersion:   "v2",
		IsSeriesPatch:  true,
		PatchTotal:     2,
		MatchedFilters: []string{"rust"},
		SeriesPatches: []domain.SeriesPatchInfo{
			{Subject: "[PATCH 1/2] A", PatchIndex: 1, PatchTotal: 2, URL: "https://lore.kernel.org/rust/p1@x/"},
		},
		MessageIDHeader: "cov@x",
	}

	e := renderCardEmbed(card)
	assert.Equal(t, "[PATCH 0/2] series X", e.Title)
	assert.Equal(t, card.URL, e.URL)

	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Author", "Subsystem", "Version", "Series", "Matched filters", "Message-ID"}, names)
}

func TestRenderSubsystemUpdate_CapsEntries(t *testing.T) {
	result := domain.SubsystemResult{
		Subsystem: "rust",
		NewCount:  3,
		Entries: []domain.FeedEntrySummary{
			{Subject: "a"}, {Subject: "b"}, {Subject: "c"},
		},
	}
	e := renderSubsystemUpdate(result, 2)
	assert.Contains(t, e.Description, "and 1 more")
}

func TestRenderSubPatchOverview_NoReplies(t *testing.T) {
	out := renderSubPatchOverview(domain.SubPatchOverview{
		Patch: domain.SeriesPatchInfo{PatchIndex: 1, PatchTotal: 2, Subject: "A"},
	})
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "No replies yet")
}

func TestRenderSubPatchOverview_IndentsChildren(t *testing.T) {
	h := domain.ReplyHierarchy{
		Roots: []string{"r1"},
		Entries: map[string]*domain.ReplyEntry{
			"r1": {Reply: domain.FeedMessage{MessageIDHeader: "r1", Author: "Alice"}, Children: []string{"r2"}},
			"r2": {Reply: domain.FeedMessage{MessageIDHeader: "r2", Author: "Bob"}},
		},
	}
	out := renderSubPatchOverview(domain.SubPatchOverview{
		Patch:     domain.SeriesPatchInfo{PatchIndex: 1, PatchTotal: 1, Subject: "A"},
		Replies:   []domain.FeedMessage{{}, {}},
		Hierarchy: h,
	})

	lines := strings.Split(out, "\n")
	var alice, bob string
	for _, l := range lines {
		if strings.Contains(l, "Alice") {
			alice = l
		}
		if strings.Contains(l, "Bob") {
			bob = l
		}
	}
	assert.True(t, strings.HasPrefix(alice, "•"))
	assert.True(t, strings.HasPrefix(bob, "  └"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	out := truncate("abcdefgh", 5)
	assert.Len(t, []rune(out), 5)
	assert.True(t, strings.HasSuffix(out, "…"))
}
