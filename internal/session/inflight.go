package session

import (
	"context"
	"encoding/json"
	"sync"
)

// inflightTable tracks the cancel functions of requests currently being
// dispatched for one session, keyed by the raw JSON id. Cancellation is
// routed per-request: notifications/cancelled names the id to cancel, and
// ids are compared byte-for-byte against what the client sent.
type inflightTable struct {
	mu   sync.Mutex
	reqs map[string]context.CancelFunc
}

// TrackRequest registers an in-flight request and returns the function that
// removes it again. Requests without an id (notifications) are not tracked.
func (s *Session) TrackRequest(id json.RawMessage, cancel context.CancelFunc) func() {
	if len(id) == 0 {
		return func() {}
	}
	key := string(id)

	s.inflight.mu.Lock()
	if s.inflight.reqs == nil {
		s.inflight.reqs = make(map[string]context.CancelFunc)
	}
	s.inflight.reqs[key] = cancel
	s.inflight.mu.Unlock()

	return func() {
		s.inflight.mu.Lock()
		delete(s.inflight.reqs, key)
		s.inflight.mu.Unlock()
	}
}

// CancelRequest signals cancellation for an in-flight request. Unknown or
// already-completed ids are silently ignored, per the protocol.
func (s *Session) CancelRequest(id json.RawMessage) bool {
	s.inflight.mu.Lock()
	cancel, ok := s.inflight.reqs[string(id)]
	s.inflight.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll signals cancellation for every in-flight request of this
// session. Used when the transport disconnects.
func (s *Session) CancelAll() {
	s.inflight.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.inflight.reqs))
	for _, c := range s.inflight.reqs {
		cancels = append(cancels, c)
	}
	s.inflight.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// InflightCount returns the number of tracked requests.
func (s *Session) InflightCount() int {
	s.inflight.mu.Lock()
	defer s.inflight.mu.Unlock()
	return len(s.inflight.reqs)
}
