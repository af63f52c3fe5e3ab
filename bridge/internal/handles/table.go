// Package handles tracks live values behind small integer handles with a
// free list, so a load context can find and release everything it created.
package handles

import (
	"errors"
	"sync"
)

// Handle is an opaque reference to a value in a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

var ErrClosed = errors.New("handle table closed")

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventInserted EventType = iota
	EventRemoved
)

// Event is passed to observers on insert and remove.
type Event struct {
	Handle Handle
	Type   EventType
}

// Table is an in-memory handle table with free-list reuse.
type Table[T any] struct {
	entries   []entry[T]
	freeList  []Handle
	observers []func(Event)
	mu        sync.RWMutex
	closed    bool
}

type entry[T any] struct {
	value T
	valid bool
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

// Observe registers fn for lifecycle events. fn runs with the table unlocked.
func (t *Table[T]) Observe(fn func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Insert stores value and returns its handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry[T]{value: value, valid: true}
	var handle Handle
	if len(t.freeList) > 0 {
		handle = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	observers := t.observers
	t.mu.Unlock()

	notify(observers, Event{Handle: handle, Type: EventInserted})
	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	var zero T
	if handle == 0 {
		return zero, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := handle - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}
	e := t.entries[idx]
	if !e.valid {
		return zero, false
	}
	return e.value, true
}

// Remove drops a handle and returns its value.
func (t *Table[T]) Remove(handle Handle) (T, bool) {
	var zero T
	if handle == 0 {
		return zero, false
	}

	t.mu.Lock()
	idx := handle - 1
	if int(idx) >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return zero, false
	}
	value := t.entries[idx].value
	t.entries[idx] = entry[T]{}
	t.freeList = append(t.freeList, handle)
	observers := t.observers
	t.mu.Unlock()

	notify(observers, Event{Handle: handle, Type: EventRemoved})
	return value, true
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live values in handle order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}

// Close stops accepting inserts and hands every live value to release,
// in handle order. Closing twice is a no-op.
func (t *Table[T]) Close(release func(Handle, T)) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true

	type live struct {
		value  T
		handle Handle
	}
	var pending []live
	for i, e := range t.entries {
		if e.valid {
			pending = append(pending, live{handle: Handle(i + 1), value: e.value})
		}
	}
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	if release != nil {
		for _, l := range pending {
			release(l.handle, l.value)
		}
	}
}

func notify(observers []func(Event), e Event) {
	for _, fn := range observers {
		fn(e)
	}
}
