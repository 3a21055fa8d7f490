package thread

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

type fakeMessages struct {
	byHeader map[string]*domain.FeedMessage
	all      []domain.FeedMessage
}

func newFakeMessages(msgs ...domain.FeedMessage) *fakeMessages {
	s := &fakeMessages{byHeader: make(map[string]*domain.FeedMessage)}
	for i := range msgs {
		m := msgs[i]
		s.byHeader[m.MessageIDHeader] = &m
		s.all = append(s.all, m)
	}
	return s
}

func (s *fakeMessages) FindByMessageIDHeader(_ context.Context, header string) (*domain.FeedMessage, error) {
	return s.byHeader[header], nil
}

func (s *fakeMessages) FindRepliesTo(_ context.Context, header string, limit int) ([]domain.FeedMessage, error) {
	var out []domain.FeedMessage
	for _, m := range s.all {
		if m.InReplyToHeader != "" && strings.Contains(m.InReplyToHeader, header) {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func at(min int) time.Time {
	return time.Date(2026, 8, 1, 12, min, 0, 0, time.UTC)
}

func reply(header, inReplyTo string, min int) domain.FeedMessage {
	return domain.FeedMessage{
		MessageIDHeader: header,
		InReplyToHeader: inReplyTo,
		Subject:         "Re: [PATCH] x",
		IsReply:         true,
		ReceivedAt:      at(min),
	}
}

func TestExtractMessageID(t *testing.T) {
	assert.Equal(t, "a@b", extractMessageID("<a@b>"))
	assert.Equal(t, "a@b", extractMessageID("  <a@b> <c@d>  "))
	assert.Equal(t, "a@b", extractMessageID("a@b"))
	assert.Equal(t, "", extractMessageID("   "))
}

func TestBuildReplyHierarchy_Flat(t *testing.T) {
	store := newFakeMessages(
		reply("r2@x", "<patch@x>", 2),
		reply("r1@x", "<patch@x>", 1),
	)

	replies, h, err := BuildReplyHierarchy(context.Background(), store, "patch@x")
	require.NoError(t, err)
	assert.Len(t, replies, 2)
	// Roots ordered by received time.
	assert.Equal(t, []string{"r1@x", "r2@x"}, h.Roots)
	assert.Empty(t, h.Entries["r1@x"].Children)
}

func TestBuildReplyHierarchy_Nested(t *testing.T) {
	store := newFakeMessages(
		reply("r1@x", "<patch@x>", 1),
		reply("r2@x", "<r1@x>", 2),
		reply("r3@x", "<r2@x>", 3),
	)

	replies, h, err := BuildReplyHierarchy(context.Background(), store, "patch@x")
	require.NoError(t, err)
	assert.Len(t, replies, 3)
	assert.Equal(t, []string{"r1@x"}, h.Roots)
	assert.Equal(t, []string{"r2@x"}, h.Entries["r1@x"].Children)
	assert.Equal(t, []string{"r3@x"}, h.Entries["r2@x"].Children)
}

func TestBuildReplyHierarchy_BrokenChainChasedThroughStore(t *testing.T) {
	// mid@x is stored but is not itself a reply to the patch, so it never
	// joins the collected set; r@x must still attach somewhere sensible.
	store := newFakeMessages(
		reply("r1@x", "<patch@x>", 1),
		domain.FeedMessage{
			MessageIDHeader: "mid@x",
			InReplyToHeader: "<r1@x>",
			ReceivedAt:      at(2),
		},
		reply("deep@x", "<mid@x>", 3),
	)

	_, h, err := BuildReplyHierarchy(context.Background(), store, "patch@x")
	require.NoError(t, err)
	// mid@x is collected transitively (its in-reply-to contains r1@x), so
	// deep@x hangs off it normally.
	assert.Equal(t, []string{"r1@x"}, h.Roots)
	assert.Equal(t, []string{"mid@x"}, h.Entries["r1@x"].Children)
	assert.Equal(t, []string{"deep@x"}, h.Entries["mid@x"].Children)
}

func TestBuildReplyHierarchy_OrphanBecomesRoot(t *testing.T) {
	// orphan@x textually mentions the patch id in its header suffix but its
	// direct parent is unknown to the store.
	store := newFakeMessages(
		domain.FeedMessage{
			MessageIDHeader: "orphan@x",
			InReplyToHeader: "<lost@y> <patch@x>",
			IsReply:         true,
			ReceivedAt:      at(1),
		},
	)

	_, h, err := BuildReplyHierarchy(context.Background(), store, "patch@x")
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan@x"}, h.Roots)
}

func TestBuildReplyHierarchy_SubPatchIsolation(t *testing.T) {
	store := newFakeMessages(
		reply("ra@x", "<p1@x>", 1),
		reply("rb@x", "<p2@x>", 2),
	)

	replies, h, err := BuildReplyHierarchy(context.Background(), store, "p2@x")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, []string{"rb@x"}, h.Roots)
	_, collected := h.Entries["ra@x"]
	assert.False(t, collected)
}

func TestBuildReplyHierarchy_Empty(t *testing.T) {
	replies, h, err := BuildReplyHierarchy(context.Background(), newFakeMessages(), "patch@x")
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Empty(t, h.Roots)
}
