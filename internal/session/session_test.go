package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	id, err := NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	return New(id, handler.BaseHandler{})
}

func TestNewIDLengthAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID failed: %v", err)
		}
		if len(id) != 64 {
			t.Fatalf("expected 64 hex chars, got %d", len(id))
		}
		if seen[id] {
			t.Fatal("duplicate session id generated")
		}
		seen[id] = true
	}
}

func TestStateMachine(t *testing.T) {
	s := newTestSession(t)

	if s.State() != Uninitialized {
		t.Fatalf("new session should be uninitialized, got %v", s.State())
	}
	if rpcErr := s.RequireInitialized(); rpcErr == nil || rpcErr.Code != mcp.CodeNotInitialized {
		t.Fatalf("expected NotInitialized, got %v", rpcErr)
	}
	// A rejected method must not change the state.
	if s.State() != Uninitialized {
		t.Error("state changed by a rejected method")
	}

	negotiated := s.Initialize("2025-06-18", json.RawMessage(`{"name":"t","version":"1"}`), mcp.DefaultSupportedVersions)
	if negotiated != "2025-06-18" {
		t.Errorf("expected echoed version, got %q", negotiated)
	}
	if s.State() != Initialized {
		t.Error("session should be initialized")
	}
	if rpcErr := s.RequireInitialized(); rpcErr != nil {
		t.Errorf("initialized session rejected: %v", rpcErr)
	}
}

func TestReinitializeReplacesClientInfo(t *testing.T) {
	s := newTestSession(t)
	s.Initialize("2025-06-18", json.RawMessage(`{"name":"first"}`), mcp.DefaultSupportedVersions)

	// Second initialize resets and renegotiates.
	negotiated := s.Initialize("2025-03-26", json.RawMessage(`{"name":"second"}`), mcp.DefaultSupportedVersions)
	if negotiated != "2025-03-26" {
		t.Errorf("renegotiation failed, got %q", negotiated)
	}
	version, clientInfo := s.Snapshot()
	if version != "2025-03-26" {
		t.Errorf("expected new version, got %q", version)
	}
	if string(clientInfo) != `{"name":"second"}` {
		t.Errorf("clientInfo not replaced: %s", clientInfo)
	}
}

func TestUnsupportedVersionGetsHighest(t *testing.T) {
	s := newTestSession(t)
	if got := s.Initialize("1999-01-01", nil, mcp.DefaultSupportedVersions); got != "2025-06-18" {
		t.Errorf("expected highest supported version, got %q", got)
	}
}

func TestInflightCancellation(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := s.TrackRequest(json.RawMessage(`1`), cancel)
	if s.InflightCount() != 1 {
		t.Fatalf("expected 1 in-flight request, got %d", s.InflightCount())
	}

	// Unknown id is ignored.
	if s.CancelRequest(json.RawMessage(`99`)) {
		t.Error("unknown request id should be ignored")
	}
	if ctx.Err() != nil {
		t.Fatal("context cancelled by unrelated id")
	}

	if !s.CancelRequest(json.RawMessage(`1`)) {
		t.Fatal("known id should cancel")
	}
	if ctx.Err() == nil {
		t.Fatal("context not cancelled")
	}

	done()
	if s.InflightCount() != 0 {
		t.Errorf("expected 0 in-flight requests, got %d", s.InflightCount())
	}
	// Completed id is ignored.
	if s.CancelRequest(json.RawMessage(`1`)) {
		t.Error("completed request id should be ignored")
	}
}

func TestCancelAll(t *testing.T) {
	s := newTestSession(t)
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	s.TrackRequest(json.RawMessage(`1`), cancel1)
	s.TrackRequest(json.RawMessage(`"two"`), cancel2)

	s.CancelAll()
	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Error("CancelAll should cancel every in-flight request")
	}
}

func TestNotificationsAreNotTracked(t *testing.T) {
	s := newTestSession(t)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := s.TrackRequest(nil, cancel)
	done()
	if s.InflightCount() != 0 {
		t.Errorf("notification tracked: %d", s.InflightCount())
	}
}
