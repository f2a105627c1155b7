package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/modq/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	clock := newFakeClock()

	rec := seedRecord(t, st, "archive", "msg1", clock.Now())

	attempt := 1
	require.NoError(t, st.UpdateStatus(ctx, rec.ID, StatusPending, StatusInFlight, UpdateFields{Attempt: &attempt}))

	// Second lease on the same record must fail: the status moved on.
	err := st.UpdateStatus(ctx, rec.ID, StatusPending, StatusInFlight, UpdateFields{})
	assert.ErrorIs(t, err, store.ErrStaleTransition)

	// Updating a missing record must not resurrect it.
	err = st.UpdateStatus(ctx, uuid.New(), StatusPending, StatusInFlight, UpdateFields{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreGetDueFiltersAndOrders(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	clock := newFakeClock()
	base := clock.Now()

	older := seedRecord(t, st, "archive", "older", base.Add(-2*time.Hour))
	newer := seedRecord(t, st, "archive", "newer", base.Add(-time.Hour))

	// Not yet eligible: waiting out a backoff window.
	waiting := seedRecord(t, st, "archive", "waiting", base.Add(-3*time.Hour))
	attempt := 1
	future := base.Add(time.Hour)
	require.NoError(t, st.UpdateStatus(ctx, waiting.ID, StatusPending, StatusInFlight, UpdateFields{Attempt: &attempt}))
	require.NoError(t, st.UpdateStatus(ctx, waiting.ID, StatusInFlight, StatusFailed, UpdateFields{NextEligibleAt: &future}))

	due, err := st.GetDue(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, older.ID, due[0].ID)
	assert.Equal(t, newer.ID, due[1].ID)

	// A failed record becomes due once its window passes.
	due, err = st.GetDue(ctx, base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, waiting.ID, due[0].ID, "oldest created_at still wins")
}

func TestMemoryStoreGetDueRespectsLimit(t *testing.T) {
	st := NewMemoryStore()
	clock := newFakeClock()
	for i := 0; i < 5; i++ {
		seedRecord(t, st, "archive", uuid.NewString(), clock.Now().Add(time.Duration(i)*time.Second))
	}

	due, err := st.GetDue(context.Background(), clock.Now().Add(time.Minute), 3)
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	clock := newFakeClock()
	rec := seedRecord(t, st, "archive", "msg1", clock.Now())

	got := st.Get(rec.ID)
	require.NotNil(t, got)
	got.Status = StatusDead

	assert.Equal(t, StatusPending, st.Get(rec.ID).Status,
		"mutating a returned record must not touch stored state")
}

func TestMemoryStoreDeleteOlderThan(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	clock := newFakeClock()

	old := seedRecord(t, st, "archive", "old", clock.Now().Add(-48*time.Hour))
	fresh := seedRecord(t, st, "archive", "fresh", clock.Now())
	for _, rec := range []*Record{old, fresh} {
		attempt := 1
		require.NoError(t, st.UpdateStatus(ctx, rec.ID, StatusPending, StatusInFlight, UpdateFields{Attempt: &attempt}))
		require.NoError(t, st.UpdateStatus(ctx, rec.ID, StatusInFlight, StatusDead, UpdateFields{}))
	}

	n, err := st.DeleteOlderThan(ctx, StatusDead, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, st.Get(old.ID))
	assert.NotNil(t, st.Get(fresh.ID))
}
