// Package config defines and loads the queue's configuration surface.
// Values come from an optional config file and from environment variables
// with the MODQ_ prefix, environment taking precedence, and are validated
// before use so misconfiguration fails at startup rather than mid-tick.
package config
