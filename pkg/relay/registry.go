// Copyright 2024-2026 Aiku AI

package relay

import (
	"sync"
)

// Registry tracks every live client session and the channel it is bound to.
// It is the only shared mutable state in the relay core. A session is added
// exactly once, after authentication and channel assignment both succeeded,
// so no partially-initialized session is ever visible to fan-out.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a bound session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	sessionsActive.Set(float64(r.Len()))
}

// Remove unregisters a session by ID. It reports whether the session was
// present, so disconnect handling stays idempotent: removing an already
// absent session is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	sessionsActive.Set(float64(r.Len()))
	return ok
}

// All returns a snapshot of every registered session. Sessions added after
// the snapshot is taken are not included; sessions removed afterwards are
// still in the returned slice and simply fail delivery.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Matching returns a snapshot of the sessions bound to the given channel.
// Matching is exact equality on the channel ID; no ordering is guaranteed.
func (r *Registry) Matching(channelID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
