package queue

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/modq/store"
)

// MemoryStore implements OperationStore in memory. It exists for tests
// and for hosts that want an ephemeral queue (losing durability but
// keeping retry/backoff semantics). Hook fields allow tests to inject
// failures into individual operations; nil hooks use the default
// behavior.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record

	SaveFn         func(ctx context.Context, rec *Record) error
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, from, to Status, fields UpdateFields) error
	GetDueFn       func(ctx context.Context, now time.Time, limit int) ([]*Record, error)
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
	}
}

// Save inserts or overwrites a record.
func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// UpdateStatus performs the conditional transition described by
// OperationStore.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, fields UpdateFields) error {
	if s.UpdateStatusFn != nil {
		return s.UpdateStatusFn(ctx, id, from, to, fields)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != from {
		return store.ErrStaleTransition
	}

	rec.Status = to
	if fields.Attempt != nil {
		rec.Attempt = *fields.Attempt
	}
	if fields.LastError != nil {
		rec.LastError = *fields.LastError
	}
	if fields.LastAttemptAt != nil {
		t := *fields.LastAttemptAt
		rec.LastAttemptAt = &t
	}
	if fields.NextEligibleAt != nil {
		rec.NextEligibleAt = *fields.NextEligibleAt
	}
	return nil
}

// Delete removes a record; deleting a missing record is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// GetDue returns dispatchable records, oldest first.
func (s *MemoryStore) GetDue(ctx context.Context, now time.Time, limit int) ([]*Record, error) {
	if s.GetDueFn != nil {
		return s.GetDueFn(ctx, now, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Record
	for _, rec := range s.records {
		if (rec.Status == StatusPending || rec.Status == StatusFailed) && !rec.NextEligibleAt.After(now) {
			cp := *rec
			due = append(due, &cp)
		}
	}
	sortByCreatedAt(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ScanByStatus returns records with the given status, oldest first.
func (s *MemoryStore) ScanByStatus(ctx context.Context, status Status, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.Status == status {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sortByCreatedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus reports how many records hold the given status.
func (s *MemoryStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if rec.Status == status {
			n++
		}
	}
	return n, nil
}

// DeleteOlderThan removes records with the given status created before
// cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, status Status, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if rec.Status == status && rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// WithTx returns the store itself; the memory store has no transactions.
func (s *MemoryStore) WithTx(tx *sql.Tx) OperationStore {
	return s
}

// Get returns a copy of the stored record, or nil when absent. Test
// helper, not part of OperationStore.
func (s *MemoryStore) Get(id uuid.UUID) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Len returns the number of stored records. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortByCreatedAt(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
