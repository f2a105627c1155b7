package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Executor performs the actual remote side effect for one operation
// record. Supplied by the host application; the queue engine is agnostic
// to what the operations mean.
//
// A nil return means the effect was applied. A non-nil error is classified
// transient and retried with backoff unless it is (or wraps) a
// TerminalError, in which case the record goes straight to dead.
// Implementations must be idempotent keyed on rec.ID: the queue may call
// Execute again for a record whose previous attempt actually succeeded
// remotely but whose acknowledgment was lost.
type Executor interface {
	Execute(ctx context.Context, rec *Record) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, rec *Record) error

// Execute calls f(ctx, rec).
func (f ExecutorFunc) Execute(ctx context.Context, rec *Record) error {
	return f(ctx, rec)
}

// TerminalError marks an execution failure that cannot self-resolve
// through retry: the target no longer exists, the request is invalid,
// authorization is permanently revoked. The queue moves the record to
// dead immediately instead of wasting its retry budget.
type TerminalError struct {
	Err error
}

// Error returns the wrapped error's message.
func (e *TerminalError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal wraps err so the queue classifies it as a terminal failure.
// Returns nil if err is nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err is (or wraps) a TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}

// HandlerFunc executes one operation of a specific kind.
type HandlerFunc func(ctx context.Context, rec *Record) error

// HandlerMux is an Executor that dispatches records to per-kind handlers,
// the moral equivalent of a tagged union over operation kinds. A record
// whose kind has no registered handler is a programmer error and fails
// terminally rather than being silently dropped or retried forever.
type HandlerMux struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewHandlerMux creates an empty handler registry.
func NewHandlerMux() *HandlerMux {
	return &HandlerMux{
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for the given operation kind, replacing
// any previous registration.
func (m *HandlerMux) Handle(kind string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = fn
}

// Execute dispatches the record to the handler registered for its kind.
func (m *HandlerMux) Execute(ctx context.Context, rec *Record) error {
	m.mu.RLock()
	fn, ok := m.handlers[rec.Kind]
	m.mu.RUnlock()

	if !ok {
		return Terminal(fmt.Errorf("no handler registered for operation kind %q", rec.Kind))
	}
	return fn(ctx, rec)
}
