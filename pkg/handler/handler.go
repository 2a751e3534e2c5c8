// Package handler defines the contract between the conduit engine and the
// code that implements an MCP server: the Handler interface, the
// per-request Context, and the Notifier capability for streaming
// notifications back to the client.
package handler

import (
	"context"
	"encoding/json"

	"github.com/conduitmcp/conduit/pkg/mcp"
)

// Context carries per-request session facts into a handler operation. It is
// constructed by the router for the duration of one method call; the
// Notifier it holds is closed when the call returns.
type Context struct {
	// SessionID is the opaque identifier of the calling session.
	SessionID string

	// ProtocolVersion is the revision negotiated during initialize. While
	// the initialize call itself is running it holds the revision just
	// negotiated for that call.
	ProtocolVersion string

	// ClientInfo is the clientInfo the session presented at initialize,
	// unparsed.
	ClientInfo json.RawMessage

	// RequestID is the raw JSON-RPC id of the in-flight request, nil for
	// notifications.
	RequestID json.RawMessage

	// ProgressToken is the raw `_meta.progressToken` the client attached to
	// this request, nil when the client did not opt into progress.
	ProgressToken json.RawMessage

	// Notifier streams notifications for this request. Never nil; on a
	// transport that cannot stream, sends are dropped with a debug log.
	Notifier Notifier
}

// Handler is implemented by the embedding application. ListTools and
// CallTool are the required surface; everything else has an empty default
// in BaseHandler.
//
// The ctx passed to every operation is cancelled when the client cancels
// the request or the transport disconnects; implementations are expected to
// observe it at their own blocking points. No operation is ever invoked
// while the engine holds a lock.
type Handler interface {
	// Initialize is called once per initialize request, after version
	// negotiation and before the result is sent. Returning an error fails
	// the handshake.
	Initialize(ctx context.Context, hc *Context, params *mcp.InitializeParams) error

	// ListTools returns the tool catalog in a deterministic order.
	ListTools(ctx context.Context, hc *Context) ([]mcp.Tool, error)

	// CallTool invokes the named tool. Arguments have already been
	// validated against the tool's input schema.
	CallTool(ctx context.Context, hc *Context, name string, args json.RawMessage) (*mcp.CallToolResult, error)

	// ListResources returns the resource catalog.
	ListResources(ctx context.Context, hc *Context) ([]mcp.Resource, error)

	// ReadResource reads the resource at uri.
	ReadResource(ctx context.Context, hc *Context, uri string) (*mcp.ReadResourceResult, error)

	// ListPrompts returns the prompt catalog.
	ListPrompts(ctx context.Context, hc *Context) ([]mcp.Prompt, error)

	// GetPrompt renders the named prompt with the given arguments.
	GetPrompt(ctx context.Context, hc *Context, name string, args map[string]string) (*mcp.GetPromptResult, error)

	// OnInitialized is called when the client acknowledges initialization
	// with notifications/initialized.
	OnInitialized(ctx context.Context, hc *Context)

	// OnCancelled is called for every notifications/cancelled the session
	// receives. Informational; when the request named in params is still in
	// flight, the engine has already cancelled that request's context.
	OnCancelled(ctx context.Context, hc *Context, params *mcp.CancelledParams)
}

// BaseHandler implements Handler with empty catalogs. Embed it to pick up
// defaults for the operations an application does not serve.
type BaseHandler struct{}

// Initialize accepts every handshake.
func (BaseHandler) Initialize(context.Context, *Context, *mcp.InitializeParams) error { return nil }

// ListTools returns an empty catalog.
func (BaseHandler) ListTools(context.Context, *Context) ([]mcp.Tool, error) { return nil, nil }

// CallTool rejects every tool name.
func (BaseHandler) CallTool(_ context.Context, _ *Context, name string, _ json.RawMessage) (*mcp.CallToolResult, error) {
	return nil, mcp.NewUnknownTool(name)
}

// ListResources returns an empty catalog.
func (BaseHandler) ListResources(context.Context, *Context) ([]mcp.Resource, error) { return nil, nil }

// ReadResource rejects every URI.
func (BaseHandler) ReadResource(_ context.Context, _ *Context, uri string) (*mcp.ReadResourceResult, error) {
	return nil, mcp.NewUnknownResource(uri)
}

// ListPrompts returns an empty catalog.
func (BaseHandler) ListPrompts(context.Context, *Context) ([]mcp.Prompt, error) { return nil, nil }

// GetPrompt rejects every prompt name.
func (BaseHandler) GetPrompt(_ context.Context, _ *Context, name string, _ map[string]string) (*mcp.GetPromptResult, error) {
	return nil, mcp.NewUnknownPrompt(name)
}

// OnInitialized is a no-op.
func (BaseHandler) OnInitialized(context.Context, *Context) {}

// OnCancelled is a no-op.
func (BaseHandler) OnCancelled(context.Context, *Context, *mcp.CancelledParams) {}

// Compile-time check that BaseHandler implements Handler.
var _ Handler = BaseHandler{}
