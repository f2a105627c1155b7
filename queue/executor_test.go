package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalWrapping(t *testing.T) {
	base := errors.New("target gone")

	err := Terminal(base)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, "target gone", err.Error())
	assert.ErrorIs(t, err, base)

	wrapped := fmt.Errorf("executing archive: %w", err)
	assert.True(t, IsTerminal(wrapped), "IsTerminal must see through wrapping")

	assert.Nil(t, Terminal(nil))
	assert.False(t, IsTerminal(errors.New("plain")))
	assert.False(t, IsTerminal(nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil is success", nil, OutcomeSuccess},
		{"plain error is retryable", errors.New("connection reset"), OutcomeRetryable},
		{"deadline is retryable", context.DeadlineExceeded, OutcomeRetryable},
		{"wrapped deadline is retryable", fmt.Errorf("call: %w", context.DeadlineExceeded), OutcomeRetryable},
		{"terminal is terminal", Terminal(errors.New("404")), OutcomeTerminal},
		{"wrapped terminal is terminal", fmt.Errorf("call: %w", Terminal(errors.New("404"))), OutcomeTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			if tt.err != nil {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestClassifyTimeoutReason(t *testing.T) {
	got := Classify(context.DeadlineExceeded)
	assert.Contains(t, got.Reason, "timeout")
}

func TestHandlerMuxDispatch(t *testing.T) {
	mux := NewHandlerMux()

	var archived []string
	mux.Handle("archive", func(ctx context.Context, rec *Record) error {
		archived = append(archived, rec.TargetID)
		return nil
	})
	mux.Handle("delete", func(ctx context.Context, rec *Record) error {
		return errors.New("remote unavailable")
	})

	rec, err := NewRecord("archive", "msg1", nil)
	require.NoError(t, err)
	require.NoError(t, mux.Execute(context.Background(), rec))
	assert.Equal(t, []string{"msg1"}, archived)

	rec, err = NewRecord("delete", "msg2", nil)
	require.NoError(t, err)
	execErr := mux.Execute(context.Background(), rec)
	require.Error(t, execErr)
	assert.False(t, IsTerminal(execErr))
}

func TestHandlerMuxUnknownKindIsTerminal(t *testing.T) {
	mux := NewHandlerMux()

	rec, err := NewRecord("snooze", "msg1", nil)
	require.NoError(t, err)

	execErr := mux.Execute(context.Background(), rec)
	require.Error(t, execErr)
	assert.True(t, IsTerminal(execErr),
		"an unregistered kind is a programmer error and must fail terminally")
	assert.Contains(t, execErr.Error(), "snooze")
}

func TestExecutorFunc(t *testing.T) {
	called := false
	var exec Executor = ExecutorFunc(func(ctx context.Context, rec *Record) error {
		called = true
		return nil
	})

	rec, err := NewRecord("archive", "msg1", nil)
	require.NoError(t, err)
	require.NoError(t, exec.Execute(context.Background(), rec))
	assert.True(t, called)
}
