package thread

import "errors"

var (
	// ErrCardNotFound is returned when a watch names a message id header
	// with no patch card and no stored feed message to build one from.
	ErrCardNotFound = errors.New("patch card not found")

	// ErrThreadExists is returned when the card already has an active
	// thread confirmed by the platform.
	ErrThreadExists = errors.New("thread already exists")

	// ErrNoPlatformMessage is returned when the card has no platform
	// message to anchor a thread on.
	ErrNoPlatformMessage = errors.New("patch card has no platform message")
)
