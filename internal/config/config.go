// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading layers defaults, an optional YAML file, a dotenv file and the
//   process environment; see Load.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// BasePath prefixes every business route, e.g. "/api".
	BasePath string `koanf:"base_path"`

	// RedisURL is the store connection string (redis:// or rediss://).
	RedisURL string `koanf:"redis_url"`

	// RedisDialTimeoutMS bounds connection establishment.
	RedisDialTimeoutMS int `koanf:"redis_dial_timeout_ms"`

	// RedisMaxRetries is the client's transport-level retry budget.
	RedisMaxRetries int `koanf:"redis_max_retries"`

	// RedisPoolSize caps pooled connections; 0 keeps the client default.
	RedisPoolSize int `koanf:"redis_pool_size"`

	// KeyPrefix namespaces every store key.
	KeyPrefix string `koanf:"key_prefix"`

	// LeaderboardLimit is the number of visible leaderboard rows.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// LeaderboardPool is the candidate pool scanned before ban filtering.
	LeaderboardPool int `koanf:"leaderboard_pool"`

	// CookieName names the identity cookie.
	CookieName string `koanf:"cookie_name"`

	// CookieMaxAgeDays is the identity cookie lifetime.
	CookieMaxAgeDays int `koanf:"cookie_max_age_days"`

	// CookieSecure sets the Secure attribute on the identity cookie.
	CookieSecure bool `koanf:"cookie_secure"`

	// StreamQueueSize bounds pending count updates for the stream hub.
	StreamQueueSize int `koanf:"stream_queue_size"`

	// StreamHeartbeatMS is the SSE keepalive interval.
	StreamHeartbeatMS int `koanf:"stream_heartbeat_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":3000",
		BasePath:           "",
		RedisURL:           "redis://localhost:6379",
		RedisDialTimeoutMS: 5000,
		RedisMaxRetries:    3,
		RedisPoolSize:      0,
		KeyPrefix:          "",
		LeaderboardLimit:   10,
		LeaderboardPool:    50,
		CookieName:         "cid",
		CookieMaxAgeDays:   365,
		CookieSecure:       true,
		StreamQueueSize:    1024,
		StreamHeartbeatMS:  30_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RedisURL == "":
		return fmt.Errorf("%w: redis_url must not be empty", ErrInvalidConfig)
	case c.LeaderboardLimit < 1:
		return fmt.Errorf("%w: leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.LeaderboardPool < c.LeaderboardLimit:
		return fmt.Errorf("%w: leaderboard_pool must not be smaller than leaderboard_limit", ErrInvalidConfig)
	case c.CookieName == "":
		return fmt.Errorf("%w: cookie_name must not be empty", ErrInvalidConfig)
	case c.CookieMaxAgeDays < 1:
		return fmt.Errorf("%w: cookie_max_age_days must be positive", ErrInvalidConfig)
	}
	return nil
}

// RedisDialTimeout returns the dial timeout as a duration.
func (c *Config) RedisDialTimeout() time.Duration {
	return time.Duration(c.RedisDialTimeoutMS) * time.Millisecond
}

// StreamHeartbeat returns the SSE keepalive interval as a duration.
func (c *Config) StreamHeartbeat() time.Duration {
	return time.Duration(c.StreamHeartbeatMS) * time.Millisecond
}

// CookieMaxAge returns the identity cookie lifetime.
func (c *Config) CookieMaxAge() time.Duration {
	return time.Duration(c.CookieMaxAgeDays) * 24 * time.Hour
}
