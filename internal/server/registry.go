package server

import "sync"

// Registry is the concurrency-safe set of open client connections. It's the
// source of truth for broadcast fan-out.
type Registry struct {
	sessions map[string]*Session
	sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a newly accepted connection and returns its Session.
func (r *Registry) Add(c Connection) *Session {
	s := newSession(c)
	r.Lock()
	r.sessions[c.ID()] = s
	r.Unlock()
	return s
}

// Remove evicts s, returning false if it had already been removed.
func (r *Registry) Remove(s *Session) bool {
	r.Lock()
	defer r.Unlock()

	if current, ok := r.sessions[s.ID()]; !ok || current != s {
		return false
	}
	delete(r.sessions, s.ID())
	return true
}

// Get looks up a session by its connection handle.
func (r *Registry) Get(id string) (*Session, bool) {
	r.RLock()
	defer r.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the sessions registered at this instant.
func (r *Registry) Snapshot() []*Session {
	r.RLock()
	defer r.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast sends msg to every open connection in a snapshot of the registry.
// A failed send only affects that recipient; the number of failures is returned.
func (r *Registry) Broadcast(msg string) (delivered, failed int) {
	for _, s := range r.Snapshot() {
		if !s.conn.IsOpen() {
			continue
		}
		if err := s.conn.Send(msg); err != nil {
			failed++
			continue
		}
		delivered++
	}
	return delivered, failed
}

// CloseAll evicts and closes every registered connection, ignoring close
// errors. The evicted sessions are returned.
func (r *Registry) CloseAll() []*Session {
	r.Lock()
	evicted := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		evicted = append(evicted, s)
		delete(r.sessions, id)
	}
	r.Unlock()

	for _, s := range evicted {
		_ = s.conn.Close()
	}
	return evicted
}
