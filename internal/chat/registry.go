// Package chat implements the server side of the protocol: the session
// state machine, the shared session registry, message routing, and the
// bounded-admission accept loop.
package chat

import (
	"sync"

	"github.com/croftja/parley/internal/model"
)

// Registry is the shared identity -> session directory. Sessions are keyed
// by their transient connection id until login, then by display name.
// Every mutation and the iteration used by broadcast share one lock, so no
// reader can observe a half-renamed key.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Insert adds a session under key. Fails if the key is already present.
func (r *Registry) Insert(key string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; ok {
		return model.ErrIdentityTaken
	}
	r.sessions[key] = session
	return nil
}

// Remove deletes the session under key and reports whether one was present.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; !ok {
		return false
	}
	delete(r.sessions, key)
	return true
}

// Rename atomically re-keys a session from oldKey to newKey. Fails if
// newKey is already taken, which makes it the arbiter for display-name
// uniqueness: of N racing logins for one name exactly one rename succeeds.
func (r *Registry) Rename(oldKey, newKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[oldKey]
	if !ok {
		return model.ErrIdentityNotFound
	}
	if _, ok := r.sessions[newKey]; ok {
		return model.ErrIdentityTaken
	}
	delete(r.sessions, oldKey)
	r.sessions[newKey] = session
	return nil
}

// Lookup returns the session under key, if any.
func (r *Registry) Lookup(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[key]
	return session, ok
}

// ForEachAuthenticated calls fn for every authenticated session while
// holding the registry lock, keeping broadcast iteration mutually
// exclusive with insert/remove/rename.
func (r *Registry) ForEachAuthenticated(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.Authenticated() {
			fn(session)
		}
	}
}

// ForEach calls fn for every registered session, authenticated or not,
// while holding the registry lock.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		fn(session)
	}
}

// Count returns the number of registered sessions, authenticated or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AuthenticatedNames returns the display names of all authenticated
// sessions, for the status API.
func (r *Registry) AuthenticatedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for key, session := range r.sessions {
		if session.Authenticated() {
			names = append(names, key)
		}
	}
	return names
}
