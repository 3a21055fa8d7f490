package subsystem

import "errors"

// ErrNotFound is returned when a named subsystem does not exist.
var ErrNotFound = errors.New("subsystem not found")
