// Package registry maps the opaque context tokens handed to native code back
// to Go values. Native code only ever sees an integer, so the Go value can
// move or be collected freely while the token stays valid.
package registry

import "sync"

// Token identifies one slot. The low 32 bits hold the slot index plus one and
// the high 32 bits, where uintptr has room, the slot generation, so a token
// that outlives its slot never resolves to the slot's next occupant. The zero
// Token is never issued.
type Token uintptr

func makeToken(idx int, gen uint32) Token {
	return Token(uint64(gen)<<32 | uint64(idx+1))
}

func (t Token) index() int {
	return int(uint32(t)) - 1
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// Table is a slab of values addressed by Token. It is safe for concurrent use
// by native callback threads and application goroutines.
type Table[T any] struct {
	mu       sync.RWMutex
	slots    []slot[T]
	freeList []int
	live     int
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{
		slots:    make([]slot[T], 0, 16),
		freeList: make([]int, 0, 8),
	}
}

// Insert stores v and returns its token.
func (t *Table[T]) Insert(v T) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live++
	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		s := &t.slots[idx]
		s.value = v
		s.valid = true
		return makeToken(idx, s.gen)
	}

	t.slots = append(t.slots, slot[T]{value: v, valid: true})
	return makeToken(len(t.slots)-1, 0)
}

// Get resolves tok. It reports false for the zero token, removed tokens and
// tokens from a previous generation of the slot.
func (t *Table[T]) Get(tok Token) (T, bool) {
	var zero T
	if tok == 0 {
		return zero, false
	}
	idx := tok.index()

	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx < 0 || idx >= len(t.slots) {
		return zero, false
	}
	s := t.slots[idx]
	if !s.valid || makeToken(idx, s.gen) != tok {
		return zero, false
	}
	return s.value, true
}

// Remove deletes tok and returns the value it held. Only the first Remove of
// a token reports true.
func (t *Table[T]) Remove(tok Token) (T, bool) {
	var zero T
	if tok == 0 {
		return zero, false
	}
	idx := tok.index()

	t.mu.Lock()
	defer t.mu.Unlock()

	if idx < 0 || idx >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[idx]
	if !s.valid || makeToken(idx, s.gen) != tok {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.valid = false
	s.gen++
	t.freeList = append(t.freeList, idx)
	t.live--
	return v, true
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}
