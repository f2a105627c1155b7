package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened to an operation record. The set is closed:
// hosts can exhaustively switch over it.
type Type string

const (
	// TypeApplied means the remote side effect succeeded and the record was
	// deleted. The host may drop its pending-state marker; local and remote
	// are confirmed consistent.
	TypeApplied Type = "applied"

	// TypeRetrying means the attempt failed transiently and the record is
	// waiting out its backoff window. Hosts typically show at most a
	// "syncing" indicator; this is not a user-facing error.
	TypeRetrying Type = "retrying"

	// TypeDead means the record exhausted its retries or hit a terminal
	// failure. The host is expected to revert its optimistic mutation and
	// surface a recoverable error to the user.
	TypeDead Type = "dead"

	// TypeRecovered is emitted once per startup by the recovery manager,
	// reporting how many abandoned in-flight records were requeued and how
	// many expired dead records were purged.
	TypeRecovered Type = "recovered"
)

// Event is a single queue state-change notification.
type Event struct {
	// Type indicates which transition occurred.
	Type Type `json:"type"`

	// RecordID, Kind, TargetID and Attempt describe the affected operation
	// record. They are zero for TypeRecovered.
	RecordID uuid.UUID `json:"record_id,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Attempt  int       `json:"attempt,omitempty"`

	// Err holds the failure message for TypeRetrying and TypeDead.
	Err string `json:"error,omitempty"`

	// Requeued and Purged carry recovery counts for TypeRecovered.
	Requeued int `json:"requeued,omitempty"`
	Purged   int `json:"purged,omitempty"`

	// At is the timestamp when the event was created.
	At time.Time `json:"at"`
}

// NewRecordEvent creates an event describing a transition of one record.
func NewRecordEvent(t Type, recordID uuid.UUID, kind, targetID string, attempt int, errMsg string) *Event {
	return &Event{
		Type:     t,
		RecordID: recordID,
		Kind:     kind,
		TargetID: targetID,
		Attempt:  attempt,
		Err:      errMsg,
		At:       time.Now().UTC(),
	}
}

// NewRecoveredEvent creates the startup diagnostics event.
func NewRecoveredEvent(requeued, purged int) *Event {
	return &Event{
		Type:     TypeRecovered,
		Requeued: requeued,
		Purged:   purged,
		At:       time.Now().UTC(),
	}
}

// Handler defines an interface for components that can handle events.
// Handlers are responsible for reconciling host state in response to
// queue transitions.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Emitter defines an interface for components that can emit events.
// The queue publishes through this without direct knowledge of handlers.
type Emitter interface {
	// Emit publishes the given event to all registered handlers.
	// Returns an error if any handler failed; emission itself never blocks
	// on handler failure.
	Emit(ctx context.Context, event *Event) error
}
