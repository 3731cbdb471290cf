package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"deskrelay/internal/types"
)

// Registry is the process-wide table of active sessions. Sessions own their
// lifecycle; the registry only indexes them for capacity enforcement,
// exclusive display claims, and metrics.
type Registry struct {
	mu       sync.Mutex
	max      int
	sessions map[uuid.UUID]*Session
	displays map[int]uuid.UUID
}

// NewRegistry creates a registry enforcing a maximum concurrent session
// count.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:      max,
		sessions: make(map[uuid.UUID]*Session),
		displays: make(map[int]uuid.UUID),
	}
}

// Add registers s. It fails with ErrCapacity at the session limit and with
// ErrDisplayBusy when another session holds an exclusive claim on the same
// display. When exclusive is set, s claims its display.
func (r *Registry) Add(s *Session, exclusive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		return types.ErrCapacity
	}
	if _, claimed := r.displays[s.Display]; claimed {
		return types.ErrDisplayBusy
	}
	r.sessions[s.ID] = s
	if exclusive {
		r.displays[s.Display] = s.ID
	}
	return nil
}

// Remove drops s and releases its display claim, if any.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
	if owner, ok := r.displays[s.Display]; ok && owner == s.ID {
		delete(r.displays, s.Display)
	}
}

// Get looks up a session by id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the ids of active sessions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id.String())
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session with the given reason. Sessions unregister
// themselves as their Run loops finish.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()
	for _, s := range snapshot {
		s.Close(reason)
	}
}
