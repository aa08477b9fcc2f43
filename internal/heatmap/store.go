package heatmap

import (
	"sync"
	"sync/atomic"
)

type snapshot struct {
	tree       *Tree
	generation uint64
}

// Store publishes the most recently built tree. Trees are never modified
// after Swap, so readers may hold one while a newer tree is published.
type Store struct {
	current atomic.Pointer[snapshot]
	swapMu  sync.Mutex
}

// NewStore creates a store holding an empty tree at generation 0
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{tree: NewTree()})
	return s
}

// Load returns the current tree
func (s *Store) Load() *Tree {
	return s.current.Load().tree
}

// Snapshot returns the current tree together with its generation
func (s *Store) Snapshot() (*Tree, uint64) {
	snap := s.current.Load()
	return snap.tree, snap.generation
}

// Swap publishes t and returns its generation
func (s *Store) Swap(t *Tree) uint64 {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	gen := s.current.Load().generation + 1
	s.current.Store(&snapshot{tree: t, generation: gen})
	return gen
}

// Generation increases by one on every Swap
func (s *Store) Generation() uint64 {
	return s.current.Load().generation
}
