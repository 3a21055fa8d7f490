package domain

import "time"

// FeedEntrySummary is the per-entry slice of a cycle result, used for
// subsystem update notifications.
type FeedEntrySummary struct {
	Subject     string    `json:"subject"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email,omitempty"`
	URL         string    `json:"url,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	IsPatch     bool      `json:"is_patch"`
	IsReply     bool      `json:"is_reply"`
}

// SubsystemResult is the outcome of processing one subsystem's feed within a
// cycle.
type SubsystemResult struct {
	Subsystem  string             `json:"subsystem"`
	NewCount   int                `json:"new_count"`
	ReplyCount int                `json:"reply_count"`
	Entries    []FeedEntrySummary `json:"entries"`
}

// MonitoringStats aggregates counts over one full cycle.
type MonitoringStats struct {
	TotalSubsystems     int `json:"total_subsystems"`
	ProcessedSubsystems int `json:"processed_subsystems"`
	TotalNewCount       int `json:"total_new_count"`
	TotalReplyCount     int `json:"total_reply_count"`
	ErrorCount          int `json:"error_count"`
}

// MonitoringResult is the value returned by one monitoring cycle: aggregate
// stats, per-subsystem results, and the errors that occurred along the way.
// Cycle errors are carried here rather than thrown so a bad subsystem cannot
// abort the rest of the pass.
type MonitoringResult struct {
	Stats     MonitoringStats   `json:"stats"`
	Results   []SubsystemResult `json:"results"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Errors    []string          `json:"errors,omitempty"`
}
