package config

import (
	"time"

	"github.com/phrazzld/modq/queue"
)

// Config holds all queue configuration. It organizes settings into
// logical groups for better maintainability.
type Config struct {
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Log      LogConfig      `mapstructure:"log"      validate:"required"`
}

// QueueConfig contains the engine tuning knobs. Defaults are set by Load;
// every field is overridable via MODQ_QUEUE_* environment variables.
type QueueConfig struct {
	ConcurrencyLimit    int           `mapstructure:"concurrency_limit"     validate:"required,gt=0,lte=64"`
	BatchSize           int           `mapstructure:"batch_size"            validate:"required,gt=0,lte=1000"`
	TickInterval        time.Duration `mapstructure:"tick_interval"         validate:"required,gt=0"`
	MaxAttempts         int           `mapstructure:"max_attempts"          validate:"required,gt=0,lte=100"`
	BaseDelay           time.Duration `mapstructure:"base_delay"            validate:"required,gt=0"`
	MaxDelay            time.Duration `mapstructure:"max_delay"             validate:"required,gtefield=BaseDelay"`
	PerOperationTimeout time.Duration `mapstructure:"per_operation_timeout" validate:"required,gt=0"`
	DeadRecordTTL       time.Duration `mapstructure:"dead_record_ttl"       validate:"required,gt=0"`
}

// DatabaseConfig contains the durable store settings. When URL is set the
// postgres adapter is used; otherwise Path selects an embedded sqlite file.
type DatabaseConfig struct {
	URL  string `mapstructure:"url"  validate:"omitempty,url"`
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig contains the health endpoint listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// Options converts the loaded queue settings into the engine's Config.
func (c QueueConfig) Options() queue.Config {
	return queue.Config{
		ConcurrencyLimit:    c.ConcurrencyLimit,
		BatchSize:           c.BatchSize,
		TickInterval:        c.TickInterval,
		MaxAttempts:         c.MaxAttempts,
		BaseDelay:           c.BaseDelay,
		MaxDelay:            c.MaxDelay,
		PerOperationTimeout: c.PerOperationTimeout,
		DeadRecordTTL:       c.DeadRecordTTL,
	}
}
