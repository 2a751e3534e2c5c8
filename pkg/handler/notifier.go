package handler

import "encoding/json"

// Logging levels for Notifier.Log, matching the MCP logging level names.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier is the one-shot capability a handler uses to stream
// notifications to the client while a single request is in flight. Sends
// are FIFO within the request and never block on the handler's side longer
// than the transport flush. After the request completes the capability is
// closed and further sends are silent no-ops.
type Notifier interface {
	// Debug emits a notifications/message at debug level.
	Debug(msg string)

	// Info emits a notifications/message at info level.
	Info(msg string)

	// Warn emits a notifications/message at warning level.
	Warn(msg string)

	// Error emits a notifications/message at error level.
	Error(msg string)

	// Log emits a notifications/message with an explicit level and
	// optional structured data.
	Log(level, msg string, data any)

	// Progress emits a notifications/progress carrying the exact token the
	// client supplied. Total may be nil when the end is unknown.
	Progress(token json.RawMessage, progress float64, total *float64)

	// ToolsChanged emits notifications/tools/list_changed.
	ToolsChanged()

	// ResourcesChanged emits notifications/resources/list_changed.
	ResourcesChanged()

	// PromptsChanged emits notifications/prompts/list_changed.
	PromptsChanged()

	// Custom emits an arbitrary server-to-client notification.
	Custom(method string, params any)
}
