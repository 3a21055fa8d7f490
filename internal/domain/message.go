package domain

import "time"

// FeedMessage is one row per distinct email ever observed on a mailing-list
// feed. Identity is the upstream Message-ID extracted from the entry link
// path (MessageIDHeader); all cross-entity joins use that string and treat it
// as opaque and case-sensitive.
type FeedMessage struct {
	ID            int64  `json:"id"`
	SubsystemName string `json:"subsystem_name"`

	// MessageID is a stable synthetic id: entry id, entry link, or a hash of
	// subsystem|subject|received timestamp when the feed provides neither.
	MessageID       string `json:"message_id"`
	MessageIDHeader string `json:"message_id_header"`
	InReplyToHeader string `json:"in_reply_to_header,omitempty"`

	Subject     string    `json:"subject"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`

	// Denormalized classification. IsPatch and IsReply are never both true.
	IsPatch       bool   `json:"is_patch"`
	IsReply       bool   `json:"is_reply"`
	IsSeriesPatch bool   `json:"is_series_patch"`
	PatchVersion  string `json:"patch_version,omitempty"`
	PatchIndex    int    `json:"patch_index"`
	PatchTotal    int    `json:"patch_total"`
	IsCoverLetter bool   `json:"is_cover_letter"`

	// SeriesMessageID is the cover letter's MessageIDHeader for sub-patches
	// and equals the message's own MessageIDHeader for the cover letter.
	SeriesMessageID string `json:"series_message_id,omitempty"`
}

// PatchInfo is the result of parsing the bracketed PATCH token out of a
// subject line. Total == 0 means the subject carried no index/total pair.
type PatchInfo struct {
	IsPatch       bool
	Version       string
	Index         int
	Total         int
	IsCoverLetter bool
}

// Classification is the pure output of the message classifier. It is attached
// to the in-memory FeedMessage for the rest of a cycle; persistence goes
// through the denormalized FeedMessage fields.
type Classification struct {
	IsPatch         bool
	IsReply         bool
	IsSeriesPatch   bool
	PatchInfo       *PatchInfo
	SeriesMessageID string
}
