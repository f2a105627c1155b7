package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/modq/events"
)

// Queue is the host-facing facade tying together the durable store, the
// retry policy, the processor loop and the recovery manager.
//
// It is an explicitly constructed value meant to be owned by the
// application's composition root and passed down by reference. There is
// deliberately no package-level singleton: tests and multi-account hosts
// instantiate independent queues with their own stores and executors.
type Queue struct {
	store     OperationStore
	processor *Processor
	recovery  *Recovery
	logger    *slog.Logger
}

// New assembles a queue from its collaborators. Zero-valued cfg fields
// are replaced with the documented defaults.
func New(st OperationStore, executor Executor, emitter events.Emitter, cfg Config, logger *slog.Logger) *Queue {
	cfg = cfg.withDefaults()
	policy := NewRetryPolicy(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay)

	return &Queue{
		store:     st,
		processor: NewProcessor(st, executor, policy, emitter, cfg, logger),
		recovery:  NewRecovery(st, emitter, cfg.DeadRecordTTL, logger),
		logger:    logger.With("component", "queue"),
	}
}

// Enqueue durably records the intent to perform an operation and wakes
// the processor. It returns the record's ID, which is also the
// idempotency key the executor will see on every attempt.
//
// If the host needs the enqueue to be atomic with its own optimistic
// local-state write, use EnqueueTx inside store.RunInTransaction instead.
func (q *Queue) Enqueue(ctx context.Context, kind, targetID string, payload any) (uuid.UUID, error) {
	rec, err := NewRecord(kind, targetID, payload)
	if err != nil {
		return uuid.Nil, err
	}

	if err := q.store.Save(ctx, rec); err != nil {
		// The caller must roll back its optimistic UI change: neither side
		// of the intended atomic pair happened.
		return uuid.Nil, fmt.Errorf("failed to persist operation record: %w", err)
	}

	q.logger.Debug("operation enqueued",
		"record_id", rec.ID,
		"kind", kind,
		"target_id", targetID)

	q.processor.Wake()
	return rec.ID, nil
}

// EnqueueTx records the intent within the caller's transaction, so the
// record and the host's optimistic local mutation commit or roll back
// together. The processor is woken regardless; if the transaction rolls
// back the extra tick simply finds nothing due.
func (q *Queue) EnqueueTx(ctx context.Context, tx *sql.Tx, kind, targetID string, payload any) (uuid.UUID, error) {
	rec, err := NewRecord(kind, targetID, payload)
	if err != nil {
		return uuid.Nil, err
	}

	if err := q.store.WithTx(tx).Save(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist operation record: %w", err)
	}

	q.processor.Wake()
	return rec.ID, nil
}

// Start runs crash recovery and then launches the processor loop.
// Recovery completes before the first tick so abandoned in_flight records
// are dispatchable immediately.
func (q *Queue) Start(ctx context.Context) error {
	if _, err := q.recovery.Run(ctx); err != nil {
		return fmt.Errorf("failed to recover queue state: %w", err)
	}

	q.processor.Start()
	return nil
}

// Stop shuts the processor down, waiting for in-flight dispatches up to
// ctx's deadline. Anything abandoned is reclaimed on next Start.
func (q *Queue) Stop(ctx context.Context) error {
	return q.processor.Stop(ctx)
}

// Kick wakes the processor loop outside of an enqueue, e.g. when the host
// regains network connectivity.
func (q *Queue) Kick() {
	q.processor.Wake()
}

// Counts reports how many records currently hold each status, for host
// health and backpressure signals.
func (q *Queue) Counts(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, 4)
	for _, s := range []Status{StatusPending, StatusInFlight, StatusFailed, StatusDead} {
		n, err := q.store.CountByStatus(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s records: %w", s, err)
		}
		counts[s] = n
	}
	return counts, nil
}
