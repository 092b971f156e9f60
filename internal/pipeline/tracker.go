// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sync"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Tracker holds the progress of the current pipeline run. At most one run is
// active at a time. The zero value is ready to use.
type Tracker struct {
	mu sync.RWMutex
	p  types.RunProgress
}

// TryStart marks a run as started. It returns false when a run is already
// in progress.
func (t *Tracker) TryStart(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.p.Running {
		return false
	}
	t.p = types.RunProgress{Running: true, Message: message}
	return true
}

// Update records the current step of the running run.
func (t *Tracker) Update(current, total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Current = current
	t.p.Total = total
	t.p.Message = message
}

// Finish marks the run as done and keeps message for later polls.
func (t *Tracker) Finish(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = types.RunProgress{Message: message}
}

// Get returns a snapshot of the progress.
func (t *Tracker) Get() types.RunProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}
