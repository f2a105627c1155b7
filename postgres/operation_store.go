package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/modq/logger"
	"github.com/phrazzld/modq/queue"
	"github.com/phrazzld/modq/store"
)

// OperationStore implements queue.OperationStore using PostgreSQL.
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
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO operations
			(id, kind, target_id, payload, status, attempt, last_error, created_at, last_attempt_at, next_eligible_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			target_id = EXCLUDED.target_id,
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			attempt = EXCLUDED.attempt,
			last_error = EXCLUDED.last_error,
			last_attempt_at = EXCLUDED.last_attempt_at,
			next_eligible_at = EXCLUDED.next_eligible_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Kind,
		rec.TargetID,
		[]byte(rec.Payload),
		rec.Status,
		rec.Attempt,
		rec.LastError,
		rec.CreatedAt,
		rec.LastAttemptAt,
		rec.NextEligibleAt,
	)
	if err != nil {
		log.Error("failed to save operation record",
			"record_id", rec.ID,
			"kind", rec.Kind,
			"error", err)
		return fmt.Errorf("failed to save operation record: %w", err)
	}

	return nil
}

// UpdateStatus atomically transitions a record's status, applying the
// auxiliary fields in the same statement. The WHERE clause on the current
// status is the lease: zero rows affected means either the record is gone
// (store.ErrNotFound) or someone else transitioned it first
// (store.ErrStaleTransition).
func (s *OperationStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to queue.Status, fields queue.UpdateFields) error {
	log := logger.FromContext(ctx)

	sets := []string{"status = $1"}
	args := []any{to}

	if fields.Attempt != nil {
		args = append(args, *fields.Attempt)
		sets = append(sets, fmt.Sprintf("attempt = $%d", len(args)))
	}
	if fields.LastError != nil {
		args = append(args, *fields.LastError)
		sets = append(sets, fmt.Sprintf("last_error = $%d", len(args)))
	}
	if fields.LastAttemptAt != nil {
		args = append(args, *fields.LastAttemptAt)
		sets = append(sets, fmt.Sprintf("last_attempt_at = $%d", len(args)))
	}
	if fields.NextEligibleAt != nil {
		args = append(args, *fields.NextEligibleAt)
		sets = append(sets, fmt.Sprintf("next_eligible_at = $%d", len(args)))
	}

	args = append(args, id)
	idPos := len(args)
	args = append(args, from)

	query := fmt.Sprintf(
		"UPDATE operations SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), idPos, idPos+1,
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update operation status",
			"record_id", id,
			"from", from,
			"to", to,
			"error", err)
		return fmt.Errorf("failed to update operation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Distinguish "deleted by a concurrent success" from "lease lost".
	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM operations WHERE id = $1)", id,
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
	_, err := s.db.ExecContext(ctx, "DELETE FROM operations WHERE id = $1", id)
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
		WHERE status IN ($1, $2) AND next_eligible_at <= $3
		ORDER BY created_at ASC
		LIMIT $4
	`
	return s.queryRecords(ctx, query, queue.StatusPending, queue.StatusFailed, now, limit)
}

// ScanByStatus returns records with the given status, oldest first. A
// limit of 0 means unbounded.
func (s *OperationStore) ScanByStatus(ctx context.Context, status queue.Status, limit int) ([]*queue.Record, error) {
	base := `
		SELECT id, kind, target_id, payload, status, attempt, last_error, created_at, last_attempt_at, next_eligible_at
		FROM operations
		WHERE status = $1
		ORDER BY created_at ASC
	`
	if limit > 0 {
		return s.queryRecords(ctx, base+" LIMIT $2", status, limit)
	}
	return s.queryRecords(ctx, base, status)
}

// CountByStatus reports how many records hold the given status.
func (s *OperationStore) CountByStatus(ctx context.Context, status queue.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM operations WHERE status = $1", status,
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
		"DELETE FROM operations WHERE status = $1 AND created_at < $2", status, cutoff,
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
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query operation records", "error", err)
		return nil, fmt.Errorf("failed to query operation records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*queue.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			log.Error("failed to scan operation row", "error", err)
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
		rec           queue.Record
		payload       []byte
		lastError     sql.NullString
		lastAttemptAt sql.NullTime
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.TargetID,
		&payload,
		&rec.Status,
		&rec.Attempt,
		&lastError,
		&rec.CreatedAt,
		&lastAttemptAt,
		&rec.NextEligibleAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan operation row: %w", err)
	}

	rec.Payload = payload
	rec.LastError = lastError.String
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		rec.LastAttemptAt = &t
	}
	return &rec, nil
}
