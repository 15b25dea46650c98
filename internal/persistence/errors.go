package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrInvalidUpdate is returned when a field update names an unknown path or
	// carries a value of the wrong type.
	ErrInvalidUpdate = errors.New("persistence: invalid field update")
)
