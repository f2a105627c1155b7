// Package queue implements a durable, idempotent, retryable mutation
// queue for local-first clients. Callers enqueue operation records in the
// same transaction as their optimistic local-state writes; a background
// processor replays the records against a host-supplied executor with
// bounded concurrency, exponential backoff and crash recovery, and emits
// typed events so the host can reconcile optimistic state on failure.
package queue
