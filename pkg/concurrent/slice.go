package concurrent

import "sync"

type Slice[V any] struct {
	mu     sync.RWMutex
	values []V
}

func NewSlice[V any]() *Slice[V] {
	return &Slice[V]{}
}

func (s *Slice[V]) Append(value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values, value)
}

func (s *Slice[V]) Length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

func (s *Slice[V]) All() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]V(nil), s.values...)
}

// Drain returns all values and empties the slice.
func (s *Slice[V]) Drain() []V {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.values
	s.values = nil
	return out
}

func (s *Slice[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = nil
}
