package queue

import (
	"math/rand"
	"time"
)

// Decision is the retry policy's verdict for one execution outcome.
type Decision struct {
	// Delete is true when the record should be removed (success).
	Delete bool

	// NextStatus is the status to persist when Delete is false: StatusFailed
	// for a scheduled retry, StatusDead for a terminal or exhausted record.
	NextStatus Status

	// NextEligibleAt is the earliest next-attempt time; only meaningful
	// when NextStatus is StatusFailed.
	NextEligibleAt time.Time

	// TerminalReason explains why a record went dead.
	TerminalReason string
}

// RetryPolicy decides, given a record and an execution outcome, the next
// state and (if retrying) the earliest next-attempt time. It holds no
// mutable state and is deterministic given its inputs and jitter source.
type RetryPolicy struct {
	// MaxAttempts is the number of execution attempts before a record with
	// only retryable failures is declared dead.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff curve.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// jitter returns a value in [0,1). Injectable for deterministic tests.
	jitter func() float64
}

// NewRetryPolicy creates a policy with the given limits and a
// math/rand-backed jitter source.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		jitter:      rand.Float64,
	}
}

// Decide maps (record, outcome) to the next persisted state.
//
// Success deletes the record. A terminal failure goes straight to dead
// regardless of attempt count. A retryable failure schedules a retry at
// now + backoff(attempt) while budget remains, then goes dead.
func (p *RetryPolicy) Decide(rec *Record, outcome Outcome, now time.Time) Decision {
	switch outcome.Kind {
	case OutcomeSuccess:
		return Decision{Delete: true}

	case OutcomeTerminal:
		return Decision{
			NextStatus:     StatusDead,
			TerminalReason: outcome.Reason,
		}

	default:
		if rec.Attempt >= p.MaxAttempts {
			return Decision{
				NextStatus:     StatusDead,
				TerminalReason: "retries exhausted: " + outcome.Reason,
			}
		}
		return Decision{
			NextStatus:     StatusFailed,
			NextEligibleAt: now.Add(p.backoff(rec.Attempt)),
		}
	}
}

// backoff computes min(MaxDelay, BaseDelay*2^attempt) scaled by a jitter
// factor in [0.5, 1.0). Jitter prevents synchronized retry storms across
// many queued operations after a shared outage.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return time.Duration(float64(delay) * (0.5 + p.jitter()*0.5))
}
