package patchcard

import "errors"

var (
	// ErrNotFound is returned when no patch card exists for the requested
	// message id header.
	ErrNotFound = errors.New("patch card not found")

	// ErrMessageNotFound is returned when a card is requested for a message
	// id header the store has never seen.
	ErrMessageNotFound = errors.New("feed message not found")

	// ErrNotAPatch is returned when a card is requested for a message that
	// was not classified as a PATCH.
	ErrNotAPatch = errors.New("message is not a patch")
)
