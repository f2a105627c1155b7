package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Queue.ConcurrencyLimit)
	assert.Equal(t, 20, cfg.Queue.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Queue.TickInterval)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Queue.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Queue.MaxDelay)
	assert.Equal(t, 15*time.Second, cfg.Queue.PerOperationTimeout)
	assert.Equal(t, 168*time.Hour, cfg.Queue.DeadRecordTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "modq.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MODQ_QUEUE_MAX_ATTEMPTS", "7")
	t.Setenv("MODQ_QUEUE_TICK_INTERVAL", "500ms")
	t.Setenv("MODQ_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.TickInterval)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched settings keep their defaults.
	assert.Equal(t, 4, cfg.Queue.ConcurrencyLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero concurrency", "MODQ_QUEUE_CONCURRENCY_LIMIT", "0"},
		{"unknown log level", "MODQ_LOG_LEVEL", "verbose"},
		{"max delay below base delay", "MODQ_QUEUE_MAX_DELAY", "1ms"},
		{"malformed database url", "MODQ_DATABASE_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestOptionsMapsEveryField(t *testing.T) {
	qc := QueueConfig{
		ConcurrencyLimit:    3,
		BatchSize:           10,
		TickInterval:        time.Second,
		MaxAttempts:         4,
		BaseDelay:           2 * time.Second,
		MaxDelay:            time.Minute,
		PerOperationTimeout: 5 * time.Second,
		DeadRecordTTL:       24 * time.Hour,
	}

	opts := qc.Options()
	assert.Equal(t, 3, opts.ConcurrencyLimit)
	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, time.Second, opts.TickInterval)
	assert.Equal(t, 4, opts.MaxAttempts)
	assert.Equal(t, 2*time.Second, opts.BaseDelay)
	assert.Equal(t, time.Minute, opts.MaxDelay)
	assert.Equal(t, 5*time.Second, opts.PerOperationTimeout)
	assert.Equal(t, 24*time.Hour, opts.DeadRecordTTL)
}
