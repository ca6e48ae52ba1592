package api

import (
	"time"

	"github.com/okian/openab/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRoute sets the path of the A/B test page.
func WithRoute(route string) Option {
	return func(s *Server) {
		if route != "" {
			s.route = route
		}
	}
}

// WithCookie sets the marker cookie name and lifetime.
func WithCookie(name string, maxAge time.Duration) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
		if maxAge > 0 {
			s.cookieMaxAge = maxAge
		}
	}
}

// WithPersistAssignment makes the page handler set the marker cookie on new decisions.
func WithPersistAssignment(enabled bool) Option {
	return func(s *Server) {
		s.persist = enabled
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
