package conduit

import (
	"log/slog"
	"time"

	"github.com/conduitmcp/conduit/pkg/handler"
)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithName sets the server name presented in the handshake and health
// probe. Default "conduit".
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// WithVersion sets the server version presented in the handshake.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithLimits sets the process-wide resource caps.
func WithLimits(limits Limits) Option {
	return func(s *Server) { s.limits = limits }
}

// WithSupportedVersions overrides the advertised protocol-version set.
func WithSupportedVersions(versions []string) Option {
	return func(s *Server) {
		if len(versions) > 0 {
			s.supported = versions
		}
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAddr sets the listen address used by Run. Default "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithHandler replaces the built-in catalog handler with a custom Handler
// implementation. Catalog registrations are ignored when set.
func WithHandler(h handler.Handler) Option {
	return func(s *Server) { s.userHandler = h }
}

// WithEviction removes sessions idle for longer than threshold, checked
// every interval.
func WithEviction(threshold, interval time.Duration) Option {
	return func(s *Server) {
		s.evictThreshold = threshold
		s.evictInterval = interval
	}
}

// WithAuditLog enables the SQLite-backed audit trail of dispatches at the
// given path.
func WithAuditLog(path string) Option {
	return func(s *Server) { s.auditPath = path }
}
