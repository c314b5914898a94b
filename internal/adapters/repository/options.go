package repository

import (
	"time"

	"github.com/okian/clickrank/pkg/logger"
)

// Option applies a configuration option to the RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix namespaces every key the store touches.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(s *RedisStore) {
		if d > 0 {
			s.opts.DialTimeout = d
		}
	}
}

// WithMaxRetries sets the client's transport-level retry budget.
func WithMaxRetries(n int) Option {
	return func(s *RedisStore) {
		if n != 0 {
			s.opts.MaxRetries = n
		}
	}
}

// WithPoolSize caps pooled connections.
func WithPoolSize(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.opts.PoolSize = n
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}
