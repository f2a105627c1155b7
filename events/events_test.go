package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewRecordEvent(t *testing.T) {
	id := uuid.New()

	ev := NewRecordEvent(TypeRetrying, id, "archive", "msg1", 2, "timeout")

	assert.Equal(t, TypeRetrying, ev.Type)
	assert.Equal(t, id, ev.RecordID)
	assert.Equal(t, "archive", ev.Kind)
	assert.Equal(t, "msg1", ev.TargetID)
	assert.Equal(t, 2, ev.Attempt)
	assert.Equal(t, "timeout", ev.Err)
	assert.False(t, ev.At.IsZero())
}

func TestNewRecoveredEvent(t *testing.T) {
	ev := NewRecoveredEvent(3, 7)

	assert.Equal(t, TypeRecovered, ev.Type)
	assert.Equal(t, 3, ev.Requeued)
	assert.Equal(t, 7, ev.Purged)
	assert.Equal(t, uuid.Nil, ev.RecordID)
	assert.False(t, ev.At.IsZero())
}
