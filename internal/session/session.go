// Package session implements per-client session state for the MCP engine:
// the Uninitialized/Initialized state machine, the sharded process-wide
// registry, and the in-flight request table used for cancellation.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

// State is the session lifecycle state.
type State int

const (
	// Uninitialized sessions accept only the initialize method.
	Uninitialized State = iota
	// Initialized sessions have negotiated a protocol version.
	Initialized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// Session is the unit of per-client state, keyed by a WebSocket connection
// or an HTTP session cookie. The mutex guards state transitions only; it is
// never held across a handler invocation or a transport write.
type Session struct {
	id      string
	handler handler.Handler

	mu              sync.Mutex
	state           State
	protocolVersion string
	clientInfo      json.RawMessage

	lastActivity atomic.Int64 // unix nanoseconds

	inflight inflightTable
}

// New creates an uninitialized session bound to the given handler.
func New(id string, h handler.Handler) *Session {
	s := &Session{id: id, handler: h}
	s.Touch()
	return s
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// Handler returns the handler serving this session.
func (s *Session) Handler() handler.Handler { return s.handler }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize transitions the session to Initialized, negotiating the
// protocol version against supported. Re-initialization is explicitly
// permitted: an already-initialized session is reset first, so reconnecting
// clients renegotiate from scratch.
func (s *Session) Initialize(requested string, clientInfo json.RawMessage, supported []string) string {
	negotiated := mcp.NegotiateVersion(requested, supported)

	s.mu.Lock()
	s.state = Initialized
	s.protocolVersion = negotiated
	s.clientInfo = clientInfo
	s.mu.Unlock()

	return negotiated
}

// Reset returns the session to Uninitialized, discarding the negotiated
// version and client info.
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = Uninitialized
	s.protocolVersion = ""
	s.clientInfo = nil
	s.mu.Unlock()
}

// RequireInitialized returns a NotInitialized error when the session has
// not completed the handshake. The state is not changed.
func (s *Session) RequireInitialized() *mcp.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Initialized {
		return mcp.NewNotInitialized()
	}
	return nil
}

// Snapshot returns the negotiated protocol version and client info under
// the session lock.
func (s *Session) Snapshot() (version string, clientInfo json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion, s.clientInfo
}

// Touch stamps the session's last-activity instant. Called on every
// successfully handled message.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last-activity instant.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// NewID creates a cryptographically random session identifier: 32 bytes
// from crypto/rand, hex encoded.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
