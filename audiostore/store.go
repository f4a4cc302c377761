// Package audiostore keeps synthesized reply audio keyed by call ID until it
// is served to the telephony provider or cleaned up. It replaces per-call
// temporary files with an explicitly owned in-memory store so cleanup is a
// map delete rather than a filesystem side effect.
package audiostore

import "sync"

// Artifact is one call's pending reply audio.
type Artifact struct {
	ContentType string
	Data        []byte
}

// Store maps call IDs to their current synthesized-audio artifact. A new Put
// for the same call replaces the previous artifact.
type Store struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

// NewStore creates an empty artifact store.
func NewStore() *Store {
	return &Store{
		artifacts: make(map[string]Artifact),
	}
}

// Put stores audio for callID, superseding any earlier artifact.
func (s *Store) Put(callID, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[callID] = Artifact{ContentType: contentType, Data: data}
}

// Get returns the artifact for callID if present.
func (s *Store) Get(callID string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[callID]
	return a, ok
}

// Delete removes the artifact for callID. Deleting a missing key is a no-op.
func (s *Store) Delete(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, callID)
}

// Len reports the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
