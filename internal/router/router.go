// Package router dispatches validated JSON-RPC envelopes to the session's
// handler. It owns per-method param typing, tool-argument schema
// validation, panic containment, and in-flight request tracking for
// cancellation.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conduitmcp/conduit/internal/notify"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

// Event describes one completed dispatch, for audit and metrics hooks.
type Event struct {
	SessionID string
	Method    string
	Tool      string
	Duration  time.Duration
	Err       *mcp.Error
}

// Config assembles a Router.
type Config struct {
	// ServerInfo is returned from initialize.
	ServerInfo mcp.Implementation
	// Capabilities is the advertised capability set.
	Capabilities mcp.ServerCapabilities
	// SupportedVersions is the closed protocol-version set. Defaults to
	// mcp.DefaultSupportedVersions.
	SupportedVersions []string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnDispatch, when set, observes every completed dispatch.
	OnDispatch func(Event)
}

// Router routes parsed envelopes to handler operations.
type Router struct {
	serverInfo mcp.Implementation
	caps       mcp.ServerCapabilities
	supported  []string
	logger     *slog.Logger
	tracer     trace.Tracer
	onDispatch func(Event)
	schemas    schemaCache
}

// New creates a Router.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	supported := cfg.SupportedVersions
	if len(supported) == 0 {
		supported = mcp.DefaultSupportedVersions
	}
	return &Router{
		serverInfo: cfg.ServerInfo,
		caps:       cfg.Capabilities,
		supported:  supported,
		logger:     logger,
		tracer:     otel.Tracer("github.com/conduitmcp/conduit/internal/router"),
		onDispatch: cfg.OnDispatch,
	}
}

// SupportedVersions returns the advertised protocol-version set.
func (r *Router) SupportedVersions() []string { return r.supported }

// LatestVersion returns the highest advertised protocol revision.
func (r *Router) LatestVersion() string { return mcp.LatestVersion(r.supported) }

// Dispatch routes one envelope for a session and returns the response, or
// nil when the envelope is a notification (notifications never produce a
// response, even on failure; such failures are logged at debug level).
//
// The handler runs under a context that is cancelled by
// notifications/cancelled for this request id or by transport disconnect.
// No lock is held while the handler executes.
func (r *Router) Dispatch(ctx context.Context, sess *session.Session, req *mcp.Request, sink *notify.Sink) *mcp.Response {
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "mcp.dispatch", trace.WithAttributes(
		attribute.String("mcp.method", req.Method),
		attribute.String("mcp.session_id", sess.ID()),
	))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	untrack := sess.TrackRequest(req.ID, cancel)
	defer untrack()

	result, rpcErr := r.dispatch(ctx, sess, req, sink)

	ev := Event{
		SessionID: sess.ID(),
		Method:    req.Method,
		Duration:  time.Since(start),
		Err:       rpcErr,
	}
	if req.Method == mcp.MethodToolsCall && rpcErr == nil {
		ev.Tool = toolName(req.Params)
	}
	if r.onDispatch != nil {
		r.onDispatch(ev)
	}

	sess.Touch()

	if req.IsNotification() {
		if rpcErr != nil {
			r.logger.Debug("notification handling failed",
				"method", req.Method, "session_id", sess.ID(), "error", rpcErr)
		}
		return nil
	}
	if rpcErr != nil {
		return mcp.NewErrorResponse(req.ID, rpcErr)
	}
	return mcp.NewResponse(req.ID, result)
}

// dispatch executes the method body. A handler panic is trapped here and
// mapped to InternalError; the session stays usable.
func (r *Router) dispatch(ctx context.Context, sess *session.Session, req *mcp.Request, sink *notify.Sink) (result any, rpcErr *mcp.Error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic trapped",
				"method", req.Method, "session_id", sess.ID(), "panic", rec)
			result = nil
			rpcErr = mcp.NewInternalError(fmt.Sprintf("handler panic: %v", rec))
		}
	}()

	switch req.Method {
	case mcp.MethodInitialize:
		return r.initialize(ctx, sess, req, sink)
	case mcp.MethodNotifInitialized:
		r.notifyInitialized(ctx, sess, req, sink)
		return nil, nil
	case mcp.MethodNotifCancelled:
		r.notifyCancelled(ctx, sess, req, sink)
		return nil, nil
	}

	// Everything below requires a completed handshake.
	if rpcErr := sess.RequireInitialized(); rpcErr != nil {
		return nil, rpcErr
	}
	hc := r.handlerContext(sess, req, sink)
	h := sess.Handler()

	switch req.Method {
	case mcp.MethodToolsList:
		tools, err := h.ListTools(ctx, hc)
		if err != nil {
			return nil, mcp.AsError(err)
		}
		if tools == nil {
			tools = []mcp.Tool{}
		}
		return mcp.ListToolsResult{Tools: tools}, nil

	case mcp.MethodToolsCall:
		return r.callTool(ctx, h, hc, req)

	case mcp.MethodResourcesList:
		resources, err := h.ListResources(ctx, hc)
		if err != nil {
			return nil, mcp.AsError(err)
		}
		if resources == nil {
			resources = []mcp.Resource{}
		}
		return mcp.ListResourcesResult{Resources: resources}, nil

	case mcp.MethodResourcesRead:
		var params mcp.ReadResourceParams
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
		if params.URI == "" {
			return nil, mcp.NewInvalidParams("uri is required")
		}
		res, err := h.ReadResource(ctx, hc, params.URI)
		if err != nil {
			return nil, mcp.AsError(err)
		}
		return res, nil

	case mcp.MethodPromptsList:
		prompts, err := h.ListPrompts(ctx, hc)
		if err != nil {
			return nil, mcp.AsError(err)
		}
		if prompts == nil {
			prompts = []mcp.Prompt{}
		}
		return mcp.ListPromptsResult{Prompts: prompts}, nil

	case mcp.MethodPromptsGet:
		var params mcp.GetPromptParams
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
		if params.Name == "" {
			return nil, mcp.NewInvalidParams("name is required")
		}
		res, err := h.GetPrompt(ctx, hc, params.Name, params.Arguments)
		if err != nil {
			return nil, mcp.AsError(err)
		}
		return res, nil

	default:
		return nil, mcp.NewMethodNotFound(req.Method)
	}
}

// initialize performs version negotiation, runs the handler hook, and
// commits the session transition only when the hook accepts. A second
// initialize resets the session and renegotiates.
func (r *Router) initialize(ctx context.Context, sess *session.Session, req *mcp.Request, sink *notify.Sink) (any, *mcp.Error) {
	var params mcp.InitializeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}

	negotiated := mcp.NegotiateVersion(params.ProtocolVersion, r.supported)

	hc := r.handlerContext(sess, req, sink)
	hc.ProtocolVersion = negotiated
	hc.ClientInfo = params.ClientInfo

	if err := sess.Handler().Initialize(ctx, hc, &params); err != nil {
		return nil, mcp.AsError(err)
	}

	sess.Initialize(params.ProtocolVersion, params.ClientInfo, r.supported)

	return mcp.InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities:    r.caps,
		ServerInfo:      r.serverInfo,
	}, nil
}

// callTool resolves the tool, validates arguments against its input
// schema, and only then invokes the user function.
func (r *Router) callTool(ctx context.Context, h handler.Handler, hc *handler.Context, req *mcp.Request) (any, *mcp.Error) {
	var params mcp.CallToolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Name == "" {
		return nil, mcp.NewInvalidParams("name is required")
	}

	tools, err := h.ListTools(ctx, hc)
	if err != nil {
		return nil, mcp.AsError(err)
	}
	var tool *mcp.Tool
	for i := range tools {
		if tools[i].Name == params.Name {
			tool = &tools[i]
			break
		}
	}
	if tool == nil {
		return nil, mcp.NewUnknownTool(params.Name)
	}

	if rpcErr := r.schemas.validate(tool.InputSchema, params.Arguments); rpcErr != nil {
		return nil, rpcErr
	}

	res, err := h.CallTool(ctx, hc, params.Name, params.Arguments)
	if err != nil {
		return nil, mcp.AsError(err)
	}
	if res == nil {
		res = &mcp.CallToolResult{Content: []mcp.Content{}}
	}
	if res.Content == nil {
		res.Content = []mcp.Content{}
	}
	return res, nil
}

// notifyInitialized acknowledges the client's initialized notification.
// From Uninitialized it is silently ignored.
func (r *Router) notifyInitialized(ctx context.Context, sess *session.Session, req *mcp.Request, sink *notify.Sink) {
	if sess.State() != session.Initialized {
		return
	}
	sess.Handler().OnInitialized(ctx, r.handlerContext(sess, req, sink))
}

// notifyCancelled signals cancellation for the named in-flight request.
// Unknown or completed ids are ignored.
func (r *Router) notifyCancelled(ctx context.Context, sess *session.Session, req *mcp.Request, sink *notify.Sink) {
	var params mcp.CancelledParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return
	}
	if len(params.RequestID) == 0 {
		return
	}
	if sess.CancelRequest(params.RequestID) {
		r.logger.Debug("request cancelled",
			"session_id", sess.ID(), "request_id", string(params.RequestID), "reason", params.Reason)
	}
	sess.Handler().OnCancelled(ctx, r.handlerContext(sess, req, sink), &params)
}

// handlerContext builds the per-request context handed to handler
// operations.
func (r *Router) handlerContext(sess *session.Session, req *mcp.Request, sink *notify.Sink) *handler.Context {
	version, clientInfo := sess.Snapshot()
	var notifier handler.Notifier = sink
	if sink == nil {
		notifier = handler.DiscardNotifier()
	}
	return &handler.Context{
		SessionID:       sess.ID(),
		ProtocolVersion: version,
		ClientInfo:      clientInfo,
		RequestID:       req.ID,
		ProgressToken:   req.ProgressToken(),
		Notifier:        notifier,
	}
}

// decodeParams types the raw params slice into dst. Absent and null params
// decode to the zero value, so methods without required fields accept both.
func decodeParams(req *mcp.Request, dst any) *mcp.Error {
	if !req.HasParams() {
		return nil
	}
	if err := json.Unmarshal(req.Params, dst); err != nil {
		return mcp.NewInvalidParams(err.Error())
	}
	return nil
}

// toolName peeks the tool name out of tools/call params for audit events.
func toolName(params json.RawMessage) string {
	var p struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(params, &p)
	return p.Name
}
