package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

func mustCreate(t *testing.T, r *Registry, id string) *Session {
	t.Helper()
	s, err := r.GetOrCreate(id, func() *Session { return New(id, handler.BaseHandler{}) })
	if err != nil {
		t.Fatalf("GetOrCreate(%s) failed: %v", id, err)
	}
	return s
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(0)

	s1 := mustCreate(t, r, "a")
	s2 := mustCreate(t, r, "a")
	if s1 != s2 {
		t.Error("GetOrCreate should return the existing session")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 session, got %d", r.Len())
	}

	if _, ok := r.Get("a"); !ok {
		t.Error("Get should find the session")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get should miss unknown ids")
	}
}

func TestRegistryMaxSessions(t *testing.T) {
	r := NewRegistry(2)
	mustCreate(t, r, "a")
	mustCreate(t, r, "b")

	_, err := r.GetOrCreate("c", func() *Session { return New("c", handler.BaseHandler{}) })
	if err == nil {
		t.Fatal("expected TooManySessions")
	}
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != mcp.CodeTooManySessions {
		t.Errorf("expected TooManySessions code, got %v", err)
	}
	// The failed create must not insert.
	if r.Len() != 2 {
		t.Errorf("failed create changed registry size: %d", r.Len())
	}
	if _, ok := r.Get("c"); ok {
		t.Error("rejected session found in registry")
	}

	// Capacity freed by removal is usable again.
	r.Remove("a")
	mustCreate(t, r, "c")
}

func TestRegistryRemoveCancelsInflight(t *testing.T) {
	r := NewRegistry(0)
	s := mustCreate(t, r, "a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.TrackRequest(json.RawMessage(`7`), cancel)

	if !r.Remove("a") {
		t.Fatal("Remove should report success")
	}
	if ctx.Err() == nil {
		t.Error("Remove should cancel in-flight requests")
	}
	if r.Remove("a") {
		t.Error("second Remove should report false")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryIsolation(t *testing.T) {
	// A write to session A's state is never observed through session B.
	r := NewRegistry(0)
	a := mustCreate(t, r, "a")
	b := mustCreate(t, r, "b")

	a.Initialize("2025-06-18", json.RawMessage(`{"name":"a"}`), mcp.DefaultSupportedVersions)
	if b.State() != Uninitialized {
		t.Error("initializing A changed B's state")
	}
	_, info := b.Snapshot()
	if info != nil {
		t.Errorf("B sees A's clientInfo: %s", info)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", n%16)
			s, err := r.GetOrCreate(id, func() *Session { return New(id, handler.BaseHandler{}) })
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			s.Touch()
		}(i)
	}
	wg.Wait()
	if r.Len() != 16 {
		t.Errorf("expected 16 distinct sessions, got %d", r.Len())
	}
}

func TestEvictInactive(t *testing.T) {
	r := NewRegistry(0)
	old := mustCreate(t, r, "old")
	mustCreate(t, r, "fresh")

	// Age the first session artificially.
	old.lastActivity.Store(time.Now().Add(-time.Hour).UnixNano())

	if n := r.EvictInactive(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := r.Get("old"); ok {
		t.Error("stale session still present")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh session evicted")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 session, got %d", r.Len())
	}
}
