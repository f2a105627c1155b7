package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/modq/events"
	"github.com/phrazzld/modq/store"
)

// Processor is the engine loop driving dispatch. It pulls due records
// from the store on a recurring tick (or when woken by an enqueue),
// leases each via a conditional status transition, executes it under a
// per-operation timeout, and persists the retry policy's decision.
//
// Ticks are serialized: a single loop goroutine processes them, so a tick
// in progress always completes before the next starts. Within a tick,
// dispatch is concurrent up to the configured limit.
type Processor struct {
	store    OperationStore
	executor Executor
	policy   *RetryPolicy
	emitter  events.Emitter
	logger   *slog.Logger

	batchSize        int
	concurrencyLimit int
	tickInterval     time.Duration
	perOpTimeout     time.Duration

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewProcessor creates a processor. cfg is expected to have been filled
// with defaults by the Queue facade.
func NewProcessor(
	st OperationStore,
	executor Executor,
	policy *RetryPolicy,
	emitter events.Emitter,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:            st,
		executor:         executor,
		policy:           policy,
		emitter:          emitter,
		logger:           logger.With("component", "processor"),
		batchSize:        cfg.BatchSize,
		concurrencyLimit: cfg.ConcurrencyLimit,
		tickInterval:     cfg.TickInterval,
		perOpTimeout:     cfg.PerOperationTimeout,
		wake:             make(chan struct{}, 1),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the tick loop. It returns immediately; processing
// happens in the background until Stop is called.
func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop halts scheduling of new ticks and waits for the in-progress tick
// (if any) to finish, bounded by ctx. Records abandoned in_flight because
// ctx expired first are reclaimed by the recovery manager on next start.
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown deadline reached with dispatches still in flight: %w", ctx.Err())
	}
}

// Wake nudges the loop to tick immediately, minimizing latency for the
// common online-and-healthy enqueue. Safe to call from any goroutine;
// coalesces when a wake is already queued.
func (p *Processor) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	p.logger.Debug("processor loop started",
		"tick_interval", p.tickInterval,
		"concurrency_limit", p.concurrencyLimit)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("processor loop stopping")
			return
		case <-ticker.C:
			p.tick(ctx)
		case <-p.wake:
			p.tick(ctx)
		}
	}
}

// tick pulls one batch of due records and dispatches them under the
// concurrency limit, oldest first. Storage failures skip the tick; the
// next one retries. No failure path escapes as a panic or crash.
func (p *Processor) tick(ctx context.Context) {
	now := p.now()

	records, err := p.store.GetDue(ctx, now, p.batchSize)
	if err != nil {
		p.logger.Warn("skipping tick, store unavailable", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	p.logger.Debug("dispatching batch", "count", len(records))

	sem := make(chan struct{}, p.concurrencyLimit)
	var wg sync.WaitGroup

	// Acquiring the semaphore before spawning preserves oldest-first order
	// when the limit throttles dispatch.
	for _, rec := range records {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(rec *Record) {
			defer wg.Done()
			defer func() { <-sem }()
			p.dispatch(rec)
		}(rec)
	}

	wg.Wait()
}

// dispatch executes one record end to end: lease, execute, persist the
// policy decision, emit the matching event.
//
// It deliberately uses a fresh context rather than the loop context so an
// execution already underway at shutdown can finish within its own
// timeout instead of being half-cancelled.
func (p *Processor) dispatch(rec *Record) {
	ctx := context.Background()
	log := p.logger.With(
		"record_id", rec.ID,
		"kind", rec.Kind,
		"target_id", rec.TargetID,
	)

	now := p.now()
	attempt := rec.Attempt + 1

	// Lease: conditional transition to in_flight before calling out, so a
	// crash mid-call leaves a recoverable marker instead of a lie.
	err := p.store.UpdateStatus(ctx, rec.ID, rec.Status, StatusInFlight, UpdateFields{
		Attempt:       &attempt,
		LastAttemptAt: &now,
	})
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrStaleTransition):
		// Another processor owns or already finished this record.
		log.Debug("lost lease on record, skipping", "reason", err)
		return
	case err != nil:
		log.Warn("failed to lease record, will retry next tick", "error", err)
		return
	}

	rec.Status = StatusInFlight
	rec.Attempt = attempt
	rec.LastAttemptAt = &now

	outcome := Classify(p.execute(ctx, rec))
	p.settle(ctx, log, rec, outcome)
}

// execute runs the executor under the per-operation timeout, converting
// panics into terminal failures so a buggy handler cannot take down the
// loop.
func (p *Processor) execute(ctx context.Context, rec *Record) (err error) {
	execCtx, cancel := context.WithTimeout(ctx, p.perOpTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = Terminal(fmt.Errorf("executor panicked: %v", r))
		}
	}()

	err = p.executor.Execute(execCtx, rec)
	if err == nil && execCtx.Err() != nil {
		// The executor swallowed the deadline; trust the clock over the
		// return value, since the remote effect is ambiguous.
		err = execCtx.Err()
	}
	return err
}

// settle persists the policy decision for an executed record and emits
// the corresponding event.
func (p *Processor) settle(ctx context.Context, log *slog.Logger, rec *Record, outcome Outcome) {
	decision := p.policy.Decide(rec, outcome, p.now())

	if decision.Delete {
		if err := p.store.Delete(ctx, rec.ID); err != nil {
			// The remote effect is applied; idempotency makes the redundant
			// retry after recovery harmless.
			log.Warn("failed to delete applied record", "error", err)
			return
		}
		log.Info("operation applied", "attempt", rec.Attempt)
		p.emit(ctx, events.NewRecordEvent(events.TypeApplied, rec.ID, rec.Kind, rec.TargetID, rec.Attempt, ""))
		return
	}

	reason := outcome.Reason
	if decision.TerminalReason != "" {
		reason = decision.TerminalReason
	}

	fields := UpdateFields{LastError: &reason}
	if decision.NextStatus == StatusFailed {
		fields.NextEligibleAt = &decision.NextEligibleAt
	}

	err := p.store.UpdateStatus(ctx, rec.ID, StatusInFlight, decision.NextStatus, fields)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrStaleTransition):
		log.Debug("record changed concurrently while settling", "reason", err)
		return
	case err != nil:
		// The record stays in_flight; recovery reclaims it on next start.
		log.Warn("failed to persist outcome", "error", err, "next_status", decision.NextStatus)
		return
	}

	switch decision.NextStatus {
	case StatusFailed:
		log.Info("operation failed, retry scheduled",
			"attempt", rec.Attempt,
			"next_eligible_at", decision.NextEligibleAt,
			"error", reason)
		p.emit(ctx, events.NewRecordEvent(events.TypeRetrying, rec.ID, rec.Kind, rec.TargetID, rec.Attempt, reason))
	case StatusDead:
		log.Error("operation dead", "attempt", rec.Attempt, "error", reason)
		p.emit(ctx, events.NewRecordEvent(events.TypeDead, rec.ID, rec.Kind, rec.TargetID, rec.Attempt, reason))
	}
}

func (p *Processor) emit(ctx context.Context, ev *events.Event) {
	if err := p.emitter.Emit(ctx, ev); err != nil {
		p.logger.Warn("event handler reported error",
			"event_type", ev.Type,
			"record_id", ev.RecordID,
			"error", err)
	}
}
