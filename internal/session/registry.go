package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/conduitmcp/conduit/pkg/mcp"
)

// shardCount is the number of registry shards. A power of two so the hash
// folds with a mask.
const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry is the process-wide session table, sharded so two clients
// operating on different sessions never contend on the same lock.
type Registry struct {
	shards      [shardCount]shard
	maxSessions int // 0 = unlimited
	count       atomic.Int64
}

// NewRegistry creates a registry enforcing maxSessions on creation. Zero
// means unlimited.
func NewRegistry(maxSessions int) *Registry {
	r := &Registry{maxSessions: maxSessions}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	return &r.shards[xxhash.Sum64String(id)&(shardCount-1)]
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	return s, ok
}

// GetOrCreate returns the existing session for id or atomically inserts the
// one produced by factory. Creation enforces the session cap: when the cap
// would be exceeded nothing is inserted and TooManySessions is returned.
func (r *Registry) GetOrCreate(id string, factory func() *Session) (*Session, error) {
	sh := r.shardFor(id)

	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		return s, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sessions[id]; ok {
		return s, nil
	}
	// Reserve a slot before inserting, so concurrent creates on different
	// shards cannot overshoot the cap together.
	if r.maxSessions > 0 {
		for {
			n := r.count.Load()
			if int(n) >= r.maxSessions {
				return nil, mcp.NewTooManySessions(r.maxSessions)
			}
			if r.count.CompareAndSwap(n, n+1) {
				break
			}
		}
	} else {
		r.count.Add(1)
	}
	s = factory()
	sh.sessions[id] = s
	return s, nil
}

// Remove deletes the session with the given id and cancels its in-flight
// requests. Reports whether a session was removed.
func (r *Registry) Remove(id string) bool {
	sh := r.shardFor(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	if ok {
		delete(sh.sessions, id)
	}
	sh.mu.Unlock()

	if ok {
		r.count.Add(-1)
		s.CancelAll()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// EvictInactive removes every session whose last activity is older than
// threshold and returns how many were evicted. Advisory; the server runs it
// from a background ticker.
func (r *Registry) EvictInactive(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold)
	evicted := 0

	for i := range r.shards {
		sh := &r.shards[i]

		sh.mu.Lock()
		var stale []*Session
		for id, s := range sh.sessions {
			if s.LastActivity().Before(cutoff) {
				delete(sh.sessions, id)
				stale = append(stale, s)
			}
		}
		sh.mu.Unlock()

		for _, s := range stale {
			r.count.Add(-1)
			s.CancelAll()
			evicted++
		}
	}
	return evicted
}
