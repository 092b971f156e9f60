// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"sync"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ProgressStore tracks the question index of in-flight Q&A runs. It is safe
// for a poller to read while a run writes.
type ProgressStore struct {
	mu      sync.RWMutex
	entries map[string]types.Progress
}

// NewProgressStore returns an empty store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{entries: make(map[string]types.Progress)}
}

// Set records the progress of the run identified by key.
func (s *ProgressStore) Set(key string, current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = types.Progress{Current: current, Total: total}
}

// Get returns the progress of key, or {0, 0} when no run is active.
func (s *ProgressStore) Get(key string) types.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

// Clear removes the entry for key.
func (s *ProgressStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Active reports whether a run for key is in flight.
func (s *ProgressStore) Active(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}
