// Package conduit is a framework for building Model Context Protocol (MCP)
// servers. It serves JSON-RPC 2.0 over WebSocket and HTTP request/response
// on one endpoint, negotiates a protocol version per session, keeps
// per-client state isolated, and streams notifications and progress back
// to clients.
//
// A minimal server:
//
//	srv := conduit.New(conduit.WithName("demo"))
//	err := srv.AddTool(mcp.Tool{Name: "echo"}, echoFunc)
//	...
//	err = srv.Run(ctx)
package conduit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/conduitmcp/conduit/internal/audit"
	"github.com/conduitmcp/conduit/internal/router"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/internal/transport"
	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

// Limits are the process-wide resource caps, immutable after the server
// starts. Zero values mean unlimited, except MaxMessageBytes which
// defaults to 2 MiB.
type Limits struct {
	MaxSessions     int
	MaxMessageBytes int
	MaxTools        int
	MaxResources    int
	MaxPrompts      int
}

// Server is a configured MCP server. Register tools, resources, and
// prompts before calling Handler or Run; registration fails fast on
// duplicates and cap violations. The Add methods do not reject calls made
// after serving starts, and the catalog is read without locking.
type Server struct {
	name      string
	version   string
	limits    Limits
	supported []string
	logger    *slog.Logger
	addr      string

	evictThreshold time.Duration
	evictInterval  time.Duration

	catalog     *handler.Catalog
	userHandler handler.Handler

	auditPath string
	auditSvc  *audit.Service
	auditDB   *audit.SQLiteStore

	buildOnce sync.Once
	buildErr  error
	registry  *session.Registry
	transport *transport.Server
}

// New creates a Server with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		name:      "conduit",
		version:   "0.0.0",
		supported: mcp.DefaultSupportedVersions,
		logger:    slog.Default(),
		addr:      "127.0.0.1:8080",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.catalog = handler.NewCatalog(handler.CatalogLimits{
		MaxTools:     s.limits.MaxTools,
		MaxResources: s.limits.MaxResources,
		MaxPrompts:   s.limits.MaxPrompts,
	})
	return s
}

// AddTool registers a tool. Duplicate names and registrations over
// MaxTools fail immediately.
func (s *Server) AddTool(tool mcp.Tool, fn handler.ToolFunc) error {
	return s.catalog.AddTool(tool, fn)
}

// AddResource registers a resource.
func (s *Server) AddResource(res mcp.Resource, fn handler.ResourceFunc) error {
	return s.catalog.AddResource(res, fn)
}

// AddPrompt registers a prompt.
func (s *Server) AddPrompt(prompt mcp.Prompt, fn handler.PromptFunc) error {
	return s.catalog.AddPrompt(prompt, fn)
}

// AddTypedTool registers a tool whose input schema is derived from T.
func AddTypedTool[T any](s *Server, name, description string, fn func(ctx context.Context, hc *handler.Context, input T) (*mcp.CallToolResult, error)) error {
	tool, call, err := handler.ToolFor[T](name, description, fn)
	if err != nil {
		return err
	}
	return s.AddTool(tool, call)
}

// build assembles the engine exactly once.
func (s *Server) build() error {
	s.buildOnce.Do(func() {
		h := s.userHandler
		if h == nil {
			h = handler.NewCatalogHandler(s.catalog)
		}

		caps := mcp.ServerCapabilities{
			Tools:     &mcp.ToolsCapability{ListChanged: true},
			Resources: &mcp.ResourcesCapability{ListChanged: true},
			Prompts:   &mcp.PromptsCapability{ListChanged: true},
			Logging:   &mcp.LoggingCapability{},
		}

		if s.auditPath != "" {
			db, err := audit.OpenSQLite(s.auditPath)
			if err != nil {
				s.buildErr = fmt.Errorf("open audit store: %w", err)
				return
			}
			s.auditDB = db
			s.auditSvc = audit.NewService(db, s.logger)
			s.auditSvc.Start()
		}

		rt := router.New(router.Config{
			ServerInfo:        mcp.Implementation{Name: s.name, Version: s.version},
			Capabilities:      caps,
			SupportedVersions: s.supported,
			Logger:            s.logger,
			OnDispatch:        s.onDispatch,
		})

		s.registry = session.NewRegistry(s.limits.MaxSessions)

		var topts []transport.Option
		topts = append(topts, transport.WithAddr(s.addr), transport.WithLogger(s.logger))
		if s.evictThreshold > 0 && s.evictInterval > 0 {
			topts = append(topts, transport.WithEviction(s.evictThreshold, s.evictInterval))
		}

		s.transport = transport.NewServer(transport.Config{
			Registry:        s.registry,
			Router:          rt,
			SessionHandler:  h,
			MaxMessageBytes: s.limits.MaxMessageBytes,
			ServerName:      s.name,
			ServerVersion:   s.version,
			HealthMetadata:  s.healthMetadata,
		}, topts...)
	})
	return s.buildErr
}

// onDispatch feeds the audit trail.
func (s *Server) onDispatch(ev router.Event) {
	if s.auditSvc == nil {
		return
	}
	rec := audit.Record{
		Time:      time.Now(),
		SessionID: ev.SessionID,
		Method:    ev.Method,
		Tool:      ev.Tool,
		Duration:  ev.Duration,
	}
	if ev.Err != nil {
		rec.ErrorCode = ev.Err.Code
	}
	s.auditSvc.Log(rec)
}

// healthMetadata surfaces audit queue state in the health probe.
func (s *Server) healthMetadata() map[string]any {
	if s.auditSvc == nil {
		return nil
	}
	return map[string]any{
		"audit_queue_depth": s.auditSvc.Depth(),
		"audit_drops":       s.auditSvc.Dropped(),
	}
}

// Handler builds the engine and returns the HTTP handler carrying /mcp,
// /health, and /metrics, for embedding into an existing server.
func (s *Server) Handler() (http.Handler, error) {
	if err := s.build(); err != nil {
		return nil, err
	}
	return s.transport.Handler(), nil
}

// Run builds the engine and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.build(); err != nil {
		return err
	}
	defer s.closeAudit()
	return s.transport.Start(ctx)
}

// SessionCount returns the number of live sessions. Zero before Run or
// Handler has built the engine.
func (s *Server) SessionCount() int {
	if s.registry == nil {
		return 0
	}
	return s.registry.Len()
}

// Close releases background resources. Run does this itself on return;
// embedders using Handler call it when done.
func (s *Server) Close() error {
	s.closeAudit()
	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}

func (s *Server) closeAudit() {
	if s.auditSvc != nil {
		s.auditSvc.Stop()
	}
	if s.auditDB != nil {
		_ = s.auditDB.Close()
	}
}
