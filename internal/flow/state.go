package flow

import (
	"context"
	"sync"
)

// State holds a single current value and broadcasts changes. Collectors of
// [State.Flow] receive the current value immediately, then every change.
// Slow collectors are conflated: they skip to the latest value.
type State[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	changed chan struct{}
}

// NewState returns a State holding initial.
func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, changed: make(chan struct{})}
}

// Value returns the current value.
func (s *State[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and wakes every collector.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Update atomically replaces the value with fn(current).
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Flow observes the state. It never completes on its own.
func (s *State[T]) Flow() Flow[T] {
	return func(ctx context.Context, emit func(T)) error {
		var last uint64
		first := true
		for {
			s.mu.Lock()
			v, ver, ch := s.value, s.version, s.changed
			s.mu.Unlock()

			if first || ver != last {
				first = false
				last = ver
				emit(v)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
			}
		}
	}
}
