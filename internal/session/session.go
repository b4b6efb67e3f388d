// Package session holds per-client live state: the set of active background
// jobs and the log buffer shown under the current job's terminal. One Session
// is created per connected client and passed explicitly to the components
// that mutate it; there is no process-wide session.
package session

import "sync"

// Session tracks active job identifiers and the current log buffer.
// All methods are safe for concurrent use; callers never take locks themselves.
type Session struct {
	mu     sync.Mutex
	active map[string]bool
	lines  []string
}

// New creates an empty session.
func New() *Session {
	return &Session{
		active: make(map[string]bool),
	}
}

// Add marks a job as active and clears the log buffer. Starting any job makes
// prior output stale, so the reset happens even when the id is already active.
func (s *Session) Add(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobID] = true
	s.lines = nil
}

// Remove deletes a job from the active set. Removing an absent id is a no-op.
func (s *Session) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}

// IsActive reports whether the given job id is in the active set.
func (s *Session) IsActive(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[jobID]
}

// ActiveJobs returns the ids currently in the active set.
func (s *Session) ActiveJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Append adds lines to the end of the log buffer, preserving arrival order.
func (s *Session) Append(lines []string) {
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
}

// Snapshot returns a copy of the current log buffer. The copy is consistent:
// concurrent Append calls never produce a torn read.
func (s *Session) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Reset clears the log buffer.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}
