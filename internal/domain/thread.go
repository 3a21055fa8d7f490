package domain

import "time"

// PatchThread is the follow-up discussion container attached to a PatchCard,
// created on an explicit watch command. At most one per card.
type PatchThread struct {
	ID                       int64  `json:"id"`
	PatchCardMessageIDHeader string `json:"patch_card_message_id_header"`
	ThreadID                 string `json:"thread_id"`
	ThreadName               string `json:"thread_name"`
	IsActive                 bool   `json:"is_active"`
	OverviewMessageID        string `json:"overview_message_id,omitempty"`

	// SubPatchMessages maps patch_index to the platform message id of that
	// sub-patch's overview message. For a single PATCH the sole key is 1.
	SubPatchMessages map[int]string `json:"sub_patch_messages"`

	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// ReplyEntry is one node of a reconstructed reply tree: the reply itself plus
// the ordered MessageIDHeaders of its children.
type ReplyEntry struct {
	Reply    FeedMessage
	Children []string
}

// ReplyHierarchy is the result of reply-tree reconstruction for one patch.
// Roots holds the MessageIDHeaders of replies addressed to the patch itself;
// Entries indexes every collected reply by its MessageIDHeader.
type ReplyHierarchy struct {
	Roots   []string
	Entries map[string]*ReplyEntry
}

// SubPatchOverview packages everything a renderer needs for one sub-patch's
// overview message: the patch, its replies, and their hierarchy.
type SubPatchOverview struct {
	Patch     SeriesPatchInfo
	Replies   []FeedMessage
	Hierarchy ReplyHierarchy
}

// ThreadOverviewData is the full render input for a thread: the card, the
// replies to the whole series, the series-level hierarchy, and one
// SubPatchOverview per sub-patch (or a single entry at index 1 for a
// standalone PATCH).
type ThreadOverviewData struct {
	Card              *PatchCard
	Replies           []FeedMessage
	Hierarchy         ReplyHierarchy
	SubPatchOverviews []SubPatchOverview
}
