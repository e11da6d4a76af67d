// Package reactive provides a small observable value used to build the
// task board's signal graph.
package reactive

import (
	"context"
	"sync"
)

// Value holds a value of type T and notifies observers on every Set.
//
// Observers run synchronously on the goroutine calling Set, in registration
// order, and never concurrently with each other for the same Value. An
// observer must not call Set or Update on the Value it observes.
type Value[T any] struct {
	setMu sync.Mutex

	mu        sync.RWMutex
	v         T
	version   uint64
	listeners []*listener[T]
}

type listener[T any] struct {
	fn func(T)
}

// NewValue returns a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial}
}

// Get returns the current value.
func (s *Value[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Version counts the Set calls so far.
func (s *Value[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set stores v and notifies every observer.
func (s *Value[T]) Set(v T) {
	s.setMu.Lock()
	defer s.setMu.Unlock()
	s.store(v)
}

// Update replaces the value with fn applied to the current one. The read and
// the write happen atomically with respect to other Set and Update calls.
func (s *Value[T]) Update(fn func(T) T) {
	s.setMu.Lock()
	defer s.setMu.Unlock()
	s.store(fn(s.Get()))
}

func (s *Value[T]) store(v T) {
	s.mu.Lock()
	s.v = v
	s.version++
	ls := make([]*listener[T], len(s.listeners))
	copy(ls, s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l.fn(v)
	}
}

// Observe registers fn for future changes. The returned func removes it.
func (s *Value[T]) Observe(fn func(T)) (cancel func()) {
	l := &listener[T]{fn: fn}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(l) })
	}
}

func (s *Value[T]) remove(l *listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Watch returns a channel that first yields the current value and then the
// latest value after each change. Slow readers only see the most recent
// value. The channel is closed once ctx is done.
func (s *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.setMu.Lock()
	ch <- s.Get()
	cancel := s.Observe(func(v T) {
		select {
		case <-ch:
		default:
		}
		ch <- v
	})
	s.setMu.Unlock()

	go func() {
		<-ctx.Done()
		s.setMu.Lock()
		cancel()
		close(ch)
		s.setMu.Unlock()
	}()
	return ch
}
