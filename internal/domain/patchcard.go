package domain

import "time"

// PatchCard is the surfaced representation of one patch on the chat
// platforms: a single PATCH or a series cover letter. Sub-patches of a
// series never get their own card; they live in FeedMessage only.
type PatchCard struct {
	ID              int64  `json:"id"`
	MessageIDHeader string `json:"message_id_header"`
	SubsystemName   string `json:"subsystem_name"`

	// Ids assigned by the primary platform when the card was first sent.
	PlatformMessageID string `json:"platform_message_id"`
	PlatformChannelID string `json:"platform_channel_id"`

	Subject string `json:"subject"`
	Author  string `json:"author"`
	URL     string `json:"url,omitempty"`

	HasThread bool `json:"has_thread"`

	// For a series card SeriesMessageID == MessageIDHeader and IsCoverLetter
	// is true.
	IsSeriesPatch   bool   `json:"is_series_patch"`
	SeriesMessageID string `json:"series_message_id,omitempty"`
	PatchVersion    string `json:"patch_version,omitempty"`
	PatchIndex      int    `json:"patch_index"`
	PatchTotal      int    `json:"patch_total"`
	IsCoverLetter   bool   `json:"is_cover_letter"`

	// ToCCList caches the deduplicated To+CC addresses of the series root,
	// fetched lazily for cclist filter matching.
	ToCCList []string `json:"to_cc_list,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	// Derived, not persisted. SeriesPatches is collated from FeedMessage
	// rows at render time; MatchedFilters records which filter rule groups
	// matched when the card was created.
	SeriesPatches  []SeriesPatchInfo `json:"series_patches,omitempty"`
	MatchedFilters []string          `json:"matched_filters,omitempty"`
}

// SeriesPatchInfo is the render-ready summary of one member of a series.
type SeriesPatchInfo struct {
	Subject    string `json:"subject"`
	URL        string `json:"url"`
	MessageID  string `json:"message_id"`
	PatchIndex int    `json:"patch_index"`
	PatchTotal int    `json:"patch_total"`
}
