// Package config provides configuration types and loading for the
// gateway: a flat set of process-wide settings, read once at startup
// from environment variables (with an optional YAML file as a base).
package config

// Config is the top-level, flat configuration for the gateway. Keys
// mirror the environment variable names verbatim (lowercased) rather
// than the nested dotted-key style some Viper-based services use,
// since every setting here is a single top-level knob with no natural
// grouping.
type Config struct {
	// DatabaseURL is the data-store DSN (the six gated datasets).
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required"`

	// PolicyDatabaseURL is the policy DB DSN (policies, manual blocks,
	// audit events, admin users).
	PolicyDatabaseURL string `yaml:"policy_database_url" mapstructure:"policy_database_url" validate:"required"`

	// RedisURL is the shared KV DSN backing the counter store.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"required"`

	// HTTPAddr is the gateway's listen address.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// UserRateLimitEnabled is the fallback policy's enabled flag, used
	// when no Policy row matches a request.
	UserRateLimitEnabled bool `yaml:"user_rate_limit_enabled" mapstructure:"user_rate_limit_enabled"`

	// UserRateLimitWindowSec is the fallback window, in seconds.
	UserRateLimitWindowSec int `yaml:"user_rate_limit_window_sec" mapstructure:"user_rate_limit_window_sec" validate:"omitempty,min=1"`

	// UserRateLimitMaxCalls is the fallback per-window ceiling.
	UserRateLimitMaxCalls int `yaml:"user_rate_limit_max_calls" mapstructure:"user_rate_limit_max_calls" validate:"omitempty,min=1"`

	// UserRateLimitBlockSec is the fallback block duration, in seconds.
	UserRateLimitBlockSec int `yaml:"user_rate_limit_block_sec" mapstructure:"user_rate_limit_block_sec" validate:"omitempty,min=1"`

	// RateEventSampling is the audit-event sampling rate in [0,1].
	// Terminal decisions (blocks, disabled-policy allows) always write
	// regardless of sampling; this only thins out routine allows.
	RateEventSampling float64 `yaml:"rate_event_sampling" mapstructure:"rate_event_sampling" validate:"gte=0,lte=1"`

	// DBConnectionTimeout bounds opening the data-store connection at
	// startup (e.g. "5s"); policy-DB calls and per-request data-store
	// queries are not bounded by it.
	DBConnectionTimeout string `yaml:"db_connection_timeout" mapstructure:"db_connection_timeout" validate:"omitempty"`

	// HTTPTimeout is checked to be a valid duration (e.g. "30s"); it is
	// not applied to the HTTP server, which sets no per-request deadline.
	HTTPTimeout string `yaml:"http_timeout" mapstructure:"http_timeout" validate:"omitempty"`

	// RateLimitDegradedMode decides the KV_UNAVAILABLE verdict: "deny"
	// (default, closed) or "allow" (open).
	RateLimitDegradedMode string `yaml:"rate_limit_degraded_mode" mapstructure:"rate_limit_degraded_mode" validate:"omitempty,oneof=allow deny"`

	// AuditQueueSize bounds the async audit write queue.
	AuditQueueSize int `yaml:"audit_queue_size" mapstructure:"audit_queue_size" validate:"omitempty,min=1"`

	// DevMode enables permissive defaults (an admin/admin seed user) for
	// running the gateway with zero external configuration.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// SetDefaults applies sensible default values to unset fields.
func (c *Config) SetDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UserRateLimitWindowSec == 0 {
		c.UserRateLimitWindowSec = 3600
	}
	if c.UserRateLimitMaxCalls == 0 {
		c.UserRateLimitMaxCalls = 1
	}
	if c.UserRateLimitBlockSec == 0 {
		c.UserRateLimitBlockSec = 10800
	}
	if c.RateEventSampling == 0 {
		c.RateEventSampling = 1.0
	}
	if c.DBConnectionTimeout == "" {
		c.DBConnectionTimeout = "5s"
	}
	if c.HTTPTimeout == "" {
		c.HTTPTimeout = "30s"
	}
	if c.RateLimitDegradedMode == "" {
		c.RateLimitDegradedMode = "deny"
	}
	if c.AuditQueueSize == 0 {
		c.AuditQueueSize = 1000
	}
}

// SetDevDefaults fills in local DSNs so the gateway is runnable with
// nothing but DevMode set.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "file:data.db?mode=ro"
	}
	if c.PolicyDatabaseURL == "" {
		c.PolicyDatabaseURL = "file:policy.db"
	}
	if c.RedisURL == "" {
		c.RedisURL = "redis://127.0.0.1:6379/0"
	}
}
