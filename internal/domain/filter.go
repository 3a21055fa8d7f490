package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Recognized filter condition fields. "subsys"/"subsystem" and "cclist"/"cc"
// are aliases.
const (
	FilterFieldAuthor      = "author"
	FilterFieldAuthorEmail = "author_email"
	FilterFieldSubsys      = "subsys"
	FilterFieldSubsystem   = "subsystem"
	FilterFieldSubject     = "subject"
	FilterFieldKeywords    = "keywords"
	FilterFieldCCList      = "cclist"
	FilterFieldCC          = "cc"
)

// SupportedFilterFields maps every recognized condition field to a short
// user-facing description.
func SupportedFilterFields() map[string]string {
	return map[string]string{
		"author":             "author name (string or list, /regex/ supported)",
		"author_email":       "author email (string or list, /regex/ supported)",
		"subsys | subsystem": "subsystem name (string or list, /regex/ supported)",
		"subject":            "subject (string or list, /regex/ supported)",
		"keywords":           "keywords matched against message content (string or list, /regex/ supported)",
		"cclist | cc":        "To/CC list of the series root patch (string or list, /regex/ supported)",
	}
}

// Condition is the scalar-or-list value of one filter field. It preserves the
// original JSON shape so that a scalar stays a scalar across read/modify/write
// cycles. Patterns inside one condition are ORed.
type Condition struct {
	patterns []string
	scalar   bool
}

// NewCondition builds a scalar condition.
func NewCondition(pattern string) Condition {
	return Condition{patterns: []string{pattern}, scalar: true}
}

// NewConditionList builds a list condition.
func NewConditionList(patterns ...string) Condition {
	return Condition{patterns: append([]string(nil), patterns...)}
}

// Patterns returns the condition's patterns in order.
func (c Condition) Patterns() []string { return append([]string(nil), c.patterns...) }

// IsScalar reports whether the condition was stored as a single string.
func (c Condition) IsScalar() bool { return c.scalar && len(c.patterns) == 1 }

// Len returns the number of patterns.
func (c Condition) Len() int { return len(c.patterns) }

// MarshalJSON emits a bare string for scalar conditions and an array
// otherwise, matching the on-disk shape user commands produce.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.IsScalar() {
		return json.Marshal(c.patterns[0])
	}
	return json.Marshal(c.patterns)
}

// UnmarshalJSON accepts either a string or an array of strings.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.patterns = []string{s}
		c.scalar = true
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("filter condition must be string or []string: %w", err)
	}
	c.patterns = list
	c.scalar = false
	return nil
}

// FilterConditions maps a condition field name to its scalar-or-list value.
// Conditions within one filter are ANDed.
type FilterConditions map[string]Condition

// PatchCardFilter is a named rule group. Within a filter the conditions are
// ANDed; across filters the groups are ORed.
type PatchCardFilter struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Enabled     bool             `json:"enabled"`
	Conditions  FilterConditions `json:"filter_conditions"`
	Description string           `json:"description,omitempty"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
