package kb

import (
	"sync/atomic"

	"github.com/sells-group/emissions-service/internal/model"
)

// Store serves the current Snapshot. Readers never block; a refresh
// publishes a complete new snapshot in a single pointer swap.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store serving initial. A nil initial snapshot is
// replaced by an empty one without defaults.
func NewStore(initial *Snapshot) *Store {
	if initial == nil {
		initial = NewBuilder(nil).Build()
	}
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the snapshot being served.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish makes snap the current snapshot and returns the previous one.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}

// Lookup resolves item against the current snapshot.
func (s *Store) Lookup(item string, category model.Category) model.FactorRecord {
	return s.Current().Lookup(item, category)
}
