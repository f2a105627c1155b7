package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional modq.yaml in the working
// directory and from MODQ_-prefixed environment variables, environment
// taking precedence. Returns a populated, validated Config or an error
// describing what is missing or out of range.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("modq")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MODQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.concurrency_limit", 4)
	v.SetDefault("queue.batch_size", 20)
	v.SetDefault("queue.tick_interval", "2s")
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.base_delay", "1s")
	v.SetDefault("queue.max_delay", "30s")
	v.SetDefault("queue.per_operation_timeout", "15s")
	v.SetDefault("queue.dead_record_ttl", "168h")
	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "modq.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
}
