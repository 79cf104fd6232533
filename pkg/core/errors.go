package core

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCycle is returned when column references form a cycle.
	ErrCycle = errors.New("circular reference")
)
