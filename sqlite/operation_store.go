package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/modq/queue"
	"github.com/phrazzld/modq/store"
)

// OperationStore implements queue.OperationStore on SQLite.
//
// Timestamps are stored as integer Unix nanoseconds (UTC) rather than as
// driver-dependent datetime text, so eligibility comparisons are plain
// integer comparisons and round-trips are exact.
type OperationStore struct {
	db store.DBTX
}

// NewOperationStore creates a new OperationStore.
func NewOperationStore(db store.DBTX) *OperationStore {
	return &OperationStore{
		db: db,
	}
}

// WithTx returns a new OperationStore bound to the provided transaction.
func (s *OperationStore) WithTx(tx *sql.Tx) queue.OperationStore {
	return &OperationStore{
		db: tx,
	}
}

// Save inserts or overwrites a record.
func (s *OperationStore) Save(ctx context.Context, rec *queue.Record) error {
	query := `
		INSERT INTO operations
			(id, kind, target_id, payload, status, attempt, last_error, created_at, last_attempt_at, next_eligible_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			target_id = excluded.target_id,
			payload = excluded.payload,
			status = excluded.status,
			attempt = excluded.attempt,
			last_error = excluded.last_error,
			last_attempt_at = excluded.last_attempt_at,
			next_eligible_at = excluded.next_eligible_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.Kind,
		rec.TargetID,
		[]byte(rec.Payload),
		rec.Status,
		rec.Attempt,
		rec.LastError,
		rec.CreatedAt.UnixNano(),
		nullableNanos(rec.LastAttemptAt),
		rec.NextEligibleAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save operation record: %w", err)
	}
	return nil
}

// UpdateStatus atomically transitions a record's status; see the
// queue.OperationStore contract. The status condition in the WHERE clause
// is the lease.
func (s *OperationStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to queue.Status, fields queue.UpdateFields) error {
	sets := []string{"status = ?"}
	args := []any{to}

	if fields.Attempt != nil {
		sets = append(sets, "attempt = ?")
		args = append(args, *fields.Attempt)
	}
	if fields.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, *fields.LastError)
	}
	if fields.LastAttemptAt != nil {
		sets = append(sets, "last_attempt_at = ?")
		args = append(args, fields.LastAttemptAt.UnixNano())
	}
	if fields.NextEligibleAt != nil {
		sets = append(sets, "next_eligible_at = ?")
		args = append(args, fields.NextEligibleAt.UnixNano())
	}

	args = append(args, id.String(), from)
	query := fmt.Sprintf(
		"UPDATE operations SET %s WHERE id = ? AND status = ?",
		strings.Join(sets, ", "),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM operations WHERE id = ?)", id.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check operation existence: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrStaleTransition
}

// Delete removes a record permanently.
func (s *OperationStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM operations WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete operation record: %w", err)
	}
	return nil
}

// GetDue returns dispatchable records, oldest first.
func (s *OperationStore) GetDue(ctx context.Context, now time.Time, limit int) ([]*queue.Record, error) {
	query := `
		SELECT id, kind, target_id, payload, status, attempt, last_error, created_at, last_attempt_at, next_eligible_at
		FROM operations
		WHERE status IN (?, ?) AND next_eligible_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return s.queryRecords(ctx, query, queue.StatusPending, queue.StatusFailed, now.UnixNano(), limit)
}

// ScanByStatus returns records with the given status, oldest first. A
// limit of 0 means unbounded.
func (s *OperationStore) ScanByStatus(ctx context.Context, status queue.Status, limit int) ([]*queue.Record, error) {
	base := `
		SELECT id, kind, target_id, payload, status, attempt, last_error, created_at, last_attempt_at, next_eligible_at
		FROM operations
		WHERE status = ?
		ORDER BY created_at ASC
	`
	if limit > 0 {
		return s.queryRecords(ctx, base+" LIMIT ?", status, limit)
	}
	return s.queryRecords(ctx, base, status)
}

// CountByStatus reports how many records hold the given status.
func (s *OperationStore) CountByStatus(ctx context.Context, status queue.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM operations WHERE status = ?", status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations by status: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes records with the given status created before
// cutoff.
func (s *OperationStore) DeleteOlderThan(ctx context.Context, status queue.Status, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM operations WHERE status = ? AND created_at < ?", status, cutoff.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired operations: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

func (s *OperationStore) queryRecords(ctx context.Context, query string, args ...any) ([]*queue.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*queue.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (*queue.Record, error) {
	var (
		rec            queue.Record
		id             string
		payload        []byte
		lastError      sql.NullString
		createdAt      int64
		lastAttemptAt  sql.NullInt64
		nextEligibleAt int64
	)

	if err := rows.Scan(
		&id,
		&rec.Kind,
		&rec.TargetID,
		&payload,
		&rec.Status,
		&rec.Attempt,
		&lastError,
		&createdAt,
		&lastAttemptAt,
		&nextEligibleAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan operation row: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse operation id %q: %w", id, err)
	}

	rec.ID = parsed
	rec.Payload = payload
	rec.LastError = lastError.String
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.NextEligibleAt = time.Unix(0, nextEligibleAt).UTC()
	if lastAttemptAt.Valid {
		t := time.Unix(0, lastAttemptAt.Int64).UTC()
		rec.LastAttemptAt = &t
	}
	return &rec, nil
}

func nullableNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
