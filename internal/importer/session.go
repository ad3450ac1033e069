package importer

import (
	"errors"
	"fmt"
)

// ErrDecisionIndex is returned when a decision index is out of range.
var ErrDecisionIndex = errors.New("decision index out of range")

// Session holds the operator's per-conflict decisions. It carries no commit
// authority of its own.
type Session struct {
	Items []Decision `json:"decisions"`
}

// NewSession opens a session with every conflict defaulting to resolve.
func NewSession(conflicts []Conflict) *Session {
	items := make([]Decision, len(conflicts))
	for i, c := range conflicts {
		items[i] = Decision{Conflict: c, Resolve: true}
	}
	return &Session{Items: items}
}

// Len returns the number of pending conflicts.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Toggle flips the decision at index i and returns the new value.
func (s *Session) Toggle(i int) (bool, error) {
	if err := s.check(i); err != nil {
		return false, err
	}
	s.Items[i].Resolve = !s.Items[i].Resolve
	return s.Items[i].Resolve, nil
}

// Set assigns the decision at index i.
func (s *Session) Set(i int, resolve bool) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.Items[i].Resolve = resolve
	return nil
}

// SetAll assigns every decision at once.
func (s *Session) SetAll(resolve bool) {
	for i := range s.Items {
		s.Items[i].Resolve = resolve
	}
}

// Decisions returns a copy of the current decisions in conflict order.
func (s *Session) Decisions() []Decision {
	if s == nil {
		return nil
	}
	out := make([]Decision, len(s.Items))
	copy(out, s.Items)
	return out
}

func (s *Session) check(i int) error {
	if s == nil || i < 0 || i >= len(s.Items) {
		return fmt.Errorf("%w: %d", ErrDecisionIndex, i)
	}
	return nil
}
