package filter

import "errors"

var (
	// ErrNotFound is returned when a filter rule group does not exist.
	ErrNotFound = errors.New("filter not found")

	// ErrConditionNotFound is returned when a condition value or type to
	// remove is not present in the rule group.
	ErrConditionNotFound = errors.New("filter condition not found")
)
