package density

import (
	"sync/atomic"
)

// Store publishes the current Table. Readers take one snapshot per request
// with Load and keep using it; Swap installs a new snapshot without touching
// the old one, so in-flight computations are never affected by a reload.
type Store struct {
	current atomic.Pointer[Table]
}

func NewStore(initial *Table) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Table {
	return s.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (s *Store) Swap(next *Table) *Table {
	return s.current.Swap(next)
}
