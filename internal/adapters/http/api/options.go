package api

import (
	"github.com/okian/clickrank/internal/adapters/http/identity"
	"github.com/okian/clickrank/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithBasePath mounts every API route under prefix.
func WithBasePath(prefix string) Option {
	return func(s *Server) {
		s.basePath = prefix
	}
}

// WithIdentity sets the resolver used to identify callers.
func WithIdentity(r *identity.Resolver) Option {
	return func(s *Server) {
		if r != nil {
			s.ids = r
		}
	}
}

// WithStreamHub enables the /events and /ws count streams.
func WithStreamHub(h *StreamHub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
