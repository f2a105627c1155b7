package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of an operation record.
type Status string

// Possible record status values.
const (
	// StatusPending marks a record awaiting its first dispatch.
	StatusPending Status = "pending"

	// StatusInFlight marks a record currently being executed. Only the
	// processor that performed the pending->in_flight transition may touch
	// it; any in_flight record found at startup is an abandoned lease.
	StatusInFlight Status = "in_flight"

	// StatusFailed marks a record that failed transiently and is waiting
	// out its backoff window. It becomes dispatchable again once
	// NextEligibleAt passes.
	StatusFailed Status = "failed"

	// StatusDead marks a record that exhausted its retries or hit a
	// terminal failure. Dead records are retained for inspection until TTL
	// cleanup or a manual retry.
	StatusDead Status = "dead"
)

// Record is the durable unit of work: one intent to mutate remote state.
//
// The ID doubles as the idempotency key. Executors must treat repeated
// calls with the same ID as a no-op if the effect was already applied,
// because after a crash or an ambiguous network failure the queue retries
// without knowing whether the remote side effect happened.
type Record struct {
	ID       uuid.UUID       `json:"id"`
	Kind     string          `json:"kind"`
	TargetID string          `json:"target_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	Status  Status `json:"status"`
	Attempt int    `json:"attempt"`

	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// NextEligibleAt is the earliest wall-clock time the record may be
	// dispatched (again). Stored explicitly rather than derived from
	// LastAttemptAt so eligibility is a plain comparison at scan time.
	NextEligibleAt time.Time `json:"next_eligible_at"`

	LastError string `json:"last_error,omitempty"`
}

// NewRecord creates a pending record for the given operation kind and
// target, serializing payload to JSON. A nil payload is allowed for
// operations that need no parameters.
func NewRecord(kind, targetID string, payload any) (*Record, error) {
	if kind == "" {
		return nil, fmt.Errorf("operation kind must not be empty")
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize payload for kind %q: %w", kind, err)
		}
		raw = b
	}

	now := time.Now().UTC()
	return &Record{
		ID:             uuid.New(),
		Kind:           kind,
		TargetID:       targetID,
		Payload:        raw,
		Status:         StatusPending,
		Attempt:        0,
		CreatedAt:      now,
		NextEligibleAt: now,
	}, nil
}

// UnmarshalPayload decodes the record's payload into the provided
// structure. Executors use this to recover their typed parameters.
func (r *Record) UnmarshalPayload(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("record %s has no payload", r.ID)
	}
	return json.Unmarshal(r.Payload, v)
}
