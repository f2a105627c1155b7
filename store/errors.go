package store

import "errors"

// Common store errors used across all adapter implementations.
var (
	// ErrNotFound is returned when a requested operation record does not
	// exist in the store, typically because a concurrent dispatch already
	// completed and deleted it. Callers must treat this as "someone else
	// finished the work", never as a reason to re-insert the record.
	ErrNotFound = errors.New("operation record not found")

	// ErrStaleTransition is returned by conditional status updates when the
	// record exists but its current status no longer matches the expected
	// one. This is the lease-loss signal: another processor owns the record.
	ErrStaleTransition = errors.New("operation record status changed concurrently")

	// ErrInvalidRecord is returned when a record fails validation before
	// being stored. Check the wrapped error for specific details.
	ErrInvalidRecord = errors.New("invalid operation record")
)
