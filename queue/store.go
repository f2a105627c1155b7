package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// UpdateFields carries the auxiliary record fields a status transition may
// change. Nil fields are left untouched.
type UpdateFields struct {
	Attempt        *int
	LastError      *string
	LastAttemptAt  *time.Time
	NextEligibleAt *time.Time
}

// OperationStore defines the interface for persisting operation records.
//
// Implementations must make UpdateStatus a single atomic conditional
// write: it is the lease mechanism that prevents double-dispatch when
// several processes share one store.
type OperationStore interface {
	// Save inserts or overwrites a record. Combined with WithTx it lets the
	// host persist the record atomically with its own optimistic
	// local-state write.
	Save(ctx context.Context, rec *Record) error

	// UpdateStatus atomically transitions a record from one status to
	// another, applying any auxiliary fields in the same write. It returns
	// store.ErrNotFound if the record no longer exists (a concurrent
	// success already deleted it) and store.ErrStaleTransition if the
	// record's current status does not match from. A lost update must
	// never resurrect a completed operation.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, fields UpdateFields) error

	// Delete removes a record permanently (post-success or post-cleanup).
	Delete(ctx context.Context, id uuid.UUID) error

	// GetDue returns up to limit records that are dispatchable at now:
	// status pending or failed with next_eligible_at <= now, ordered by
	// created_at ascending so the oldest intent is retried first.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*Record, error)

	// ScanByStatus returns up to limit records with the given status,
	// ordered by created_at ascending. A limit of 0 means unbounded.
	ScanByStatus(ctx context.Context, status Status, limit int) ([]*Record, error)

	// CountByStatus reports how many records currently hold the given
	// status, for health and backpressure signals.
	CountByStatus(ctx context.Context, status Status) (int, error)

	// DeleteOlderThan removes records with the given status created before
	// cutoff and reports how many were removed. Used for TTL cleanup of
	// dead records.
	DeleteOlderThan(ctx context.Context, status Status, cutoff time.Time) (int, error)

	// WithTx returns a new OperationStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller,
	// typically via store.RunInTransaction.
	WithTx(tx *sql.Tx) OperationStore
}
