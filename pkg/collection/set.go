package collection

import "sync"

// Set is an ordered, append-only collection of distinct records. Items keep
// the order in which they were first merged and are never removed.
type Set[T comparable] struct {
	mu    sync.RWMutex
	items []T
	index map[T]struct{}
	keep  func(T) bool
}

// NewSet returns an empty set. keep filters what Merge accepts; nil accepts
// every item.
func NewSet[T comparable](keep func(T) bool) *Set[T] {
	return &Set[T]{
		index: make(map[T]struct{}),
		keep:  keep,
	}
}

// Merge absorbs incoming and returns the items that were new, in arrival order.
func (s *Set[T]) Merge(incoming []T) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta []T
	s.items, delta = absorb(s.index, s.items, incoming, s.keep)
	return delta
}

func (s *Set[T]) Contains(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[v]
	return ok
}

// ContainsFunc reports whether any item satisfies match.
func (s *Set[T]) ContainsFunc(match func(T) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if match(v) {
			return true
		}
	}
	return false
}

// Items returns a copy of the current contents.
func (s *Set[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.items...)
}

func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
