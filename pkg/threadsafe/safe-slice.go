package threadsafe

import "sync"

type SafeSlice[T any] struct {
	inner []T
	mux   *sync.RWMutex
}

func NewSafeSlice[T any](capacity int) *SafeSlice[T] {
	return &SafeSlice[T]{
		inner: make([]T, 0, capacity),
		mux:   &sync.RWMutex{},
	}
}

func (s *SafeSlice[T]) Size() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.inner)
}

func (s *SafeSlice[T]) Append(v T) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.inner = append(s.inner, v)
}

// Items returns a copy of the collected values.
func (s *SafeSlice[T]) Items() []T {
	s.mux.RLock()
	defer s.mux.RUnlock()
	items := make([]T, len(s.inner))
	copy(items, s.inner)
	return items
}
