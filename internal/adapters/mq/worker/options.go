package worker

import (
	"github.com/okian/clickrank/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithName sets the dispatcher name used for logging.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
