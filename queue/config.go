package queue

import "time"

// Config holds the queue engine's tuning knobs. Zero values are replaced
// with the defaults from DefaultConfig by New.
type Config struct {
	// ConcurrencyLimit caps how many records one tick dispatches to the
	// executor at the same time. Bounding this protects shared remote-API
	// rate limits the executor may not fully shield against.
	ConcurrencyLimit int

	// BatchSize is the maximum number of due records pulled per tick.
	BatchSize int

	// TickInterval is the recurring schedule of the processor loop.
	// Enqueue also wakes the loop immediately, so this is a staleness
	// bound, not the common-case latency.
	TickInterval time.Duration

	// MaxAttempts, BaseDelay and MaxDelay parameterize the retry policy.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// PerOperationTimeout bounds a single executor call. A hung network
	// call is classified as a retryable timeout instead of blocking the
	// queue indefinitely.
	PerOperationTimeout time.Duration

	// DeadRecordTTL is how long dead records are retained before the
	// recovery manager purges them at startup.
	DeadRecordTTL time.Duration
}

// DefaultConfig returns a Config with reasonable defaults. The backoff
// constants are engineering defaults, not load-bearing values; hosts with
// stricter rate limits should tune them.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit:    4,
		BatchSize:           20,
		TickInterval:        2 * time.Second,
		MaxAttempts:         5,
		BaseDelay:           time.Second,
		MaxDelay:            30 * time.Second,
		PerOperationTimeout: 15 * time.Second,
		DeadRecordTTL:       7 * 24 * time.Hour,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = def.ConcurrencyLimit
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.PerOperationTimeout <= 0 {
		c.PerOperationTimeout = def.PerOperationTimeout
	}
	if c.DeadRecordTTL <= 0 {
		c.DeadRecordTTL = def.DeadRecordTTL
	}
	return c
}
