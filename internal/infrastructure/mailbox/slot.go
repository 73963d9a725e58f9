// Package mailbox provides a single-slot, latest-wins hand-off between goroutines.
package mailbox

import (
	"sync"
)

// Slot holds at most one pending value. Put overwrites, readers see the
// most recent write. All fields are protected by mu.
type Slot[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   T
	seq     uint64 // number of Put calls, 0 = empty
	taken   uint64 // seq of the last consumed value
	dropped uint64 // values overwritten before being consumed
	closed  bool
}

// New returns an empty slot.
func New[T any]() *Slot[T] {
	s := &Slot[T]{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores v, replacing any unconsumed value. It never blocks on readers.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.seq > s.taken {
		s.dropped++
	}
	s.value = v
	s.seq++
	s.cond.Signal()
}

// Latest returns the most recent value and its sequence number without
// consuming it. ok is false before the first Put.
func (s *Slot[T]) Latest() (v T, seq uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.seq, s.seq > 0
}

// Take returns the most recent value if it has not been consumed yet.
func (s *Slot[T]) Take() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == s.taken {
		return v, false
	}
	s.taken = s.seq
	return s.value, true
}

// Wait blocks until an unconsumed value is available or the slot is closed.
func (s *Slot[T]) Wait() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.seq == s.taken && !s.closed {
		s.cond.Wait()
	}
	if s.seq == s.taken {
		return v, false
	}
	s.taken = s.seq
	return s.value, true
}

// Dropped returns how many values were overwritten before being consumed.
func (s *Slot[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close wakes blocked readers. Later Puts are ignored.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
