// Package session implements the Session Registry: a short-lived correlator
// from csrf_state to a pending downstream authorization. Grounded on
// original_source/src/lib.rs (AppState.auth_sessions) and
// original_source/src/handlers/mod.rs's sweep-then-insert ordering.
package session

import (
	"sync"
	"time"

	"github.com/kamekamek/googlecalendar-mcp/pkg/upstream"
)

// sweepTTL is the maximum age of a live session before it is dropped by the
// next opportunistic sweep.
const sweepTTL = 10 * time.Minute

// AuthorizationSession pairs a user with the AuthorizationContext the
// registry is tracking on their behalf.
type AuthorizationSession struct {
	UserID    string
	Context   upstream.AuthorizationContext
	CreatedAt time.Time
}

// Registry is the keyed mapping from csrf_state to AuthorizationSession.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]AuthorizationSession
	now      func() time.Time
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]AuthorizationSession), now: time.Now}
}

// Insert sweeps expired entries, then stores sess keyed by its CSRF state.
// The sweep is opportunistic: it runs on every Insert call rather than on a
// background timer (SPEC_FULL.md §9).
func (r *Registry) Insert(sess AuthorizationSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.sessions[sess.Context.CSRFState] = sess
}

// Consume removes and returns the session for csrfState, if still live.
func (r *Registry) Consume(csrfState string) (AuthorizationSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[csrfState]
	if ok {
		delete(r.sessions, csrfState)
	}
	return sess, ok
}

// RevokeUser purges every session belonging to userID.
func (r *Registry) RevokeUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for state, sess := range r.sessions {
		if sess.UserID == userID {
			delete(r.sessions, state)
		}
	}
}

func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-sweepTTL)
	for state, sess := range r.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(r.sessions, state)
		}
	}
}

// Len reports the current number of live (not yet swept) sessions; primarily
// for tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
