package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conduitmcp/conduit/internal/router"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/pkg/handler"
)

// DefaultMaxMessageBytes caps inbound messages at 2 MiB unless overridden.
const DefaultMaxMessageBytes = 2 << 20

// Config assembles the transport server around the engine components.
type Config struct {
	// Registry is the shared session table.
	Registry *session.Registry
	// Router dispatches decoded envelopes.
	Router *router.Router
	// SessionHandler is the handler bound to newly created sessions.
	SessionHandler handler.Handler
	// MaxMessageBytes caps inbound message size. 0 means the default.
	MaxMessageBytes int
	// ServerName and ServerVersion feed the health probe.
	ServerName    string
	ServerVersion string
	// HealthMetadata, when non-nil, contributes extra health metadata.
	HealthMetadata func() map[string]any
	// PromRegistry receives the transport metrics. A fresh registry with
	// go and process collectors is created when nil.
	PromRegistry *prometheus.Registry
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithEviction enables the background eviction of sessions idle for longer
// than threshold, checked every interval.
func WithEviction(threshold, interval time.Duration) Option {
	return func(s *Server) {
		s.evictThreshold = threshold
		s.evictInterval = interval
	}
}

// Server is the inbound HTTP adapter: it owns the listener, the /mcp
// multiplexer, the /health probe, and the /metrics endpoint.
type Server struct {
	addr            string
	logger          *slog.Logger
	registry        *session.Registry
	router          *router.Router
	sessionHandler  handler.Handler
	maxMessageBytes int
	metrics         *Metrics
	promRegistry    *prometheus.Registry
	health          *HealthChecker
	evictThreshold  time.Duration
	evictInterval   time.Duration
	httpServer      *http.Server
}

// NewServer creates the transport server.
func NewServer(cfg Config, opts ...Option) *Server {
	s := &Server{
		addr:            "127.0.0.1:8080",
		logger:          slog.Default(),
		registry:        cfg.Registry,
		router:          cfg.Router,
		sessionHandler:  cfg.SessionHandler,
		maxMessageBytes: cfg.MaxMessageBytes,
		promRegistry:    cfg.PromRegistry,
	}
	if s.maxMessageBytes <= 0 {
		s.maxMessageBytes = DefaultMaxMessageBytes
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.promRegistry == nil {
		s.promRegistry = prometheus.NewRegistry()
		s.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = NewMetrics(s.promRegistry)
	RegisterSessionGauge(s.promRegistry, s.registry.Len)

	s.health = NewHealthChecker(
		cfg.ServerName,
		cfg.ServerVersion,
		s.router.LatestVersion(),
		s.registry.Len,
		cfg.HealthMetadata,
	)

	return s
}

// Handler returns the fully assembled HTTP handler, for embedding conduit
// into an existing server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", s.health.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{
		Registry: s.promRegistry,
	}))
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)

	// Every response carries the CORS envelope, including /metrics.
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		mux.ServeHTTP(w, r)
	})
	h = RequestIDMiddleware(s.logger)(h)
	h = MetricsMiddleware(s.metrics)(h)
	return h
}

// Start begins serving and blocks until the context is cancelled or the
// listener fails. Shutdown is graceful with a 10 second drain.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	if s.evictInterval > 0 && s.evictThreshold > 0 {
		go s.evictLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// evictLoop periodically removes sessions idle past the threshold.
func (s *Server) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(s.evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.EvictInactive(s.evictThreshold); n > 0 {
				s.logger.Debug("evicted inactive sessions", "count", n)
			}
		}
	}
}

// shutdown drains the HTTP server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.shutdown()
}
