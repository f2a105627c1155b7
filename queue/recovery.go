package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/modq/events"
	"github.com/phrazzld/modq/store"
)

// RecoveryStats reports what a recovery run did.
type RecoveryStats struct {
	// Requeued is the number of abandoned in_flight records reset to
	// pending.
	Requeued int

	// Purged is the number of expired dead records deleted.
	Purged int
}

// Recovery reclaims operations left in an ambiguous state by a prior
// process crash. It runs once at startup, before the processor's first
// tick.
//
// A record found in_flight means the previous process died without
// learning whether the remote call succeeded. Its true remote effect is
// unknown, so recovery resets it to pending and relies on the executor's
// idempotency (keyed on the record ID) to make the retry safe either way.
type Recovery struct {
	store   OperationStore
	emitter events.Emitter
	logger  *slog.Logger
	ttl     time.Duration

	now func() time.Time
}

// NewRecovery creates a recovery manager. ttl bounds how long dead
// records are retained before being purged.
func NewRecovery(st OperationStore, emitter events.Emitter, ttl time.Duration, logger *slog.Logger) *Recovery {
	return &Recovery{
		store:   st,
		emitter: emitter,
		logger:  logger.With("component", "recovery"),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run resets abandoned in_flight records to pending (immediately
// eligible) and purges dead records older than the TTL, then reports the
// counts through the event emitter for diagnostics.
func (r *Recovery) Run(ctx context.Context) (RecoveryStats, error) {
	var stats RecoveryStats
	now := r.now()

	abandoned, err := r.store.ScanByStatus(ctx, StatusInFlight, 0)
	if err != nil {
		return stats, fmt.Errorf("failed to scan in-flight records: %w", err)
	}

	for _, rec := range abandoned {
		err := r.store.UpdateStatus(ctx, rec.ID, StatusInFlight, StatusPending, UpdateFields{
			NextEligibleAt: &now,
		})
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrStaleTransition):
			// Another process already settled it between scan and reset.
			continue
		case err != nil:
			r.logger.Error("failed to reset abandoned record",
				"record_id", rec.ID,
				"kind", rec.Kind,
				"error", err)
			continue
		}
		stats.Requeued++
	}

	purged, err := r.store.DeleteOlderThan(ctx, StatusDead, now.Add(-r.ttl))
	if err != nil {
		r.logger.Error("failed to purge expired dead records", "error", err)
	} else {
		stats.Purged = purged
	}

	r.logger.Info("recovery complete",
		"requeued", stats.Requeued,
		"purged", stats.Purged)

	if err := r.emitter.Emit(ctx, events.NewRecoveredEvent(stats.Requeued, stats.Purged)); err != nil {
		r.logger.Warn("event handler reported error during recovery", "error", err)
	}

	return stats, nil
}
