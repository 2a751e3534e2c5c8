// Package notify implements the per-request notification sink handed to
// handlers. A sink is a one-shot capability: the router opens it for the
// duration of one method call and closes it when the call returns, after
// which no further notifications can be emitted for that request id.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

// Flusher delivers one encoded notification to the client. WebSocket
// connections write a text frame; a chunked HTTP response writes an NDJSON
// chunk. A nil Flusher means the transport cannot stream and notifications
// are dropped with a debug log.
type Flusher interface {
	WriteNotification(data []byte) error
}

// Sink implements handler.Notifier on top of a transport Flusher. Sends
// are serialized under a mutex, which gives FIFO ordering within the
// request without ever holding the lock across handler code.
type Sink struct {
	flusher       Flusher
	logger        *slog.Logger
	progressToken json.RawMessage // token bound at request start
	onEmit        func(method string)

	mu     sync.Mutex
	closed bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithProgressToken binds the client-supplied progress token, used when a
// handler emits progress without naming the token itself.
func WithProgressToken(token json.RawMessage) Option {
	return func(s *Sink) { s.progressToken = token }
}

// WithEmitHook installs a callback invoked after each delivered
// notification, keyed by method. Used for metrics.
func WithEmitHook(hook func(method string)) Option {
	return func(s *Sink) { s.onEmit = hook }
}

// NewSink creates a sink writing through f. A nil f discards.
func NewSink(f Flusher, logger *slog.Logger, opts ...Option) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{flusher: f, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close seals the sink. Further sends are silent no-ops, guaranteeing no
// notification is delivered after the request's response.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Sink) send(method string, params any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("notification dropped: request already completed", "method", method)
		return
	}
	if s.flusher == nil {
		s.logger.Debug("notification dropped: transport cannot stream", "method", method)
		return
	}

	data, err := mcp.EncodeNotification(mcp.NewNotification(method, params))
	if err != nil {
		s.logger.Error("failed to encode notification", "method", method, "error", err)
		return
	}
	if err := s.flusher.WriteNotification(data); err != nil {
		// The transport is gone. Log and continue; the handler keeps running.
		s.logger.Debug("notification flush failed", "method", method, "error", err)
		return
	}
	if s.onEmit != nil {
		s.onEmit(method)
	}
}

// Debug emits a notifications/message at debug level.
func (s *Sink) Debug(msg string) { s.Log(handler.LevelDebug, msg, nil) }

// Info emits a notifications/message at info level.
func (s *Sink) Info(msg string) { s.Log(handler.LevelInfo, msg, nil) }

// Warn emits a notifications/message at warning level.
func (s *Sink) Warn(msg string) { s.Log(handler.LevelWarning, msg, nil) }

// Error emits a notifications/message at error level.
func (s *Sink) Error(msg string) { s.Log(handler.LevelError, msg, nil) }

// Log emits a notifications/message with an explicit level.
func (s *Sink) Log(level, msg string, data any) {
	payload := any(msg)
	if data != nil {
		payload = map[string]any{"message": msg, "data": data}
	}
	s.send(mcp.MethodNotifMessage, mcp.LoggingMessageParams{Level: level, Data: payload})
}

// Progress emits a notifications/progress. When the handler passes a nil
// token the token bound at request start is used, so the client always
// receives the exact token it supplied.
func (s *Sink) Progress(token json.RawMessage, progress float64, total *float64) {
	if token == nil {
		token = s.progressToken
	}
	if token == nil {
		s.logger.Debug("progress dropped: request carries no progress token")
		return
	}
	s.send(mcp.MethodNotifProgress, mcp.ProgressParams{
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
	})
}

// ToolsChanged emits notifications/tools/list_changed.
func (s *Sink) ToolsChanged() { s.send(mcp.MethodNotifToolsChanged, nil) }

// ResourcesChanged emits notifications/resources/list_changed.
func (s *Sink) ResourcesChanged() { s.send(mcp.MethodNotifResourcesChanged, nil) }

// PromptsChanged emits notifications/prompts/list_changed.
func (s *Sink) PromptsChanged() { s.send(mcp.MethodNotifPromptsChanged, nil) }

// Custom emits an arbitrary notification.
func (s *Sink) Custom(method string, params any) { s.send(method, params) }

// Compile-time check that Sink implements handler.Notifier.
var _ handler.Notifier = (*Sink)(nil)
