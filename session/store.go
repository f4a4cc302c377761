// Package session holds per-call conversation state for the lifetime of a
// call. Sessions are in-memory only; nothing survives a process restart.
package session

import "sync"

// Session is the conversational state of one active call.
type Session struct {
	// CallID is the provider-assigned call identifier.
	CallID string

	// ContinuationToken references the last dialogue response so the
	// backend can thread the next turn. Empty before the first turn.
	// The token is opaque; it is stored and forwarded, never inspected.
	ContinuationToken string
}

// Store is a concurrent-safe mapping from call ID to Session. Turns within a
// call are serialized by the telephony provider, so per-call mutation is not
// guarded beyond the map lock; cross-call access is.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for callID, creating it if absent. A copy
// is returned; callers mutate state through UpdateContinuation.
func (s *Store) GetOrCreate(callID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = &Session{CallID: callID}
		s.sessions[callID] = sess
	}
	return *sess
}

// Get returns the session for callID if it exists.
func (s *Store) Get(callID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// UpdateContinuation replaces the continuation token for callID. The session
// is created if it does not exist, so an update after an out-of-band removal
// does not resurrect stale state elsewhere.
func (s *Store) UpdateContinuation(callID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = &Session{CallID: callID}
		s.sessions[callID] = sess
	}
	sess.ContinuationToken = token
}

// Remove deletes the session for callID. Removing a missing key is a no-op.
func (s *Store) Remove(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
