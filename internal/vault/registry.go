package vault

import (
	"fmt"
	"slices"

	"github.com/illarion/keevault/internal/domain"
)

// Registry is an ordered list of sessions addressed by position.
// Removing a session shifts the positions of every later one.
// Registry is not safe for concurrent use; callers serialize access.
type Registry struct {
	sessions []*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a session and returns its position
func (r *Registry) Add(s *Session) int {
	r.sessions = append(r.sessions, s)
	return len(r.sessions) - 1
}

// All returns the sessions in order
func (r *Registry) All() []*Session {
	return append([]*Session(nil), r.sessions...)
}

// Get returns the session at position i
func (r *Registry) Get(i int) (*Session, error) {
	if i < 0 || i >= len(r.sessions) {
		return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, i)
	}
	return r.sessions[i], nil
}

// Remove locks the session at position i and drops it
func (r *Registry) Remove(i int) error {
	s, err := r.Get(i)
	if err != nil {
		return err
	}
	s.Lock()
	r.sessions = slices.Delete(r.sessions, i, i+1)
	return nil
}
