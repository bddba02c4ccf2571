package traversal

import "errors"

// Sentinel errors for traversal operations.
var (
	// ErrNodeNotFound is returned when a start or end node is not in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidDepth is returned for a negative maximum depth.
	ErrInvalidDepth = errors.New("invalid depth")

	// ErrBudgetExceeded is returned when a call expands more edges than the
	// engine's work budget allows. No partial result accompanies it.
	ErrBudgetExceeded = errors.New("traversal work budget exceeded")
)
