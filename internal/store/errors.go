package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist in scope.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a staged row changed since the
	// caller read it.
	ErrVersionConflict = errors.New("staged row was modified concurrently")
)
