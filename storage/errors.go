package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a run is not found.
	ErrNotFound = errors.New("not found")
)
