// Package slab implements a bidirectional string-key store over densely
// packed numeric slots.
//
// Slots are allocated in insertion order and reused from a free list only
// after their mapping is removed, so an ID stays valid for as long as its key
// is mapped. IDs are only meaningful against the Map that minted them:
// passing a foreign ID is a precondition violation, and the Must* accessors
// panic on it rather than returning a zero value.
package slab

import "fmt"

// ID is a typed handle into a Map of V values.
type ID[V any] struct {
	raw int
}

// Raw returns the slot index.
func (id ID[V]) Raw() int { return id.raw }

// Untyped erases the value type of the ID.
func (id ID[V]) Untyped() UntypedID { return UntypedID{raw: id.raw} }

func (id ID[V]) String() string { return fmt.Sprintf("#%d", id.raw) }

// UntypedID is an ID with its value type erased.
type UntypedID struct {
	raw int
}

// Raw returns the slot index.
func (id UntypedID) Raw() int { return id.raw }

func (id UntypedID) String() string { return fmt.Sprintf("#%d", id.raw) }

// FromRaw converts a slot index into an untyped ID without any checks.
func FromRaw(raw int) UntypedID { return UntypedID{raw: raw} }

// Typed converts an untyped ID into a typed one without any checks.
// Indexing with the result panics if the ID was minted by a different Map.
func Typed[V any](id UntypedID) ID[V] { return ID[V]{raw: id.raw} }

// Retype changes the value type of an ID without any checks.
func Retype[To, From any](id ID[From]) ID[To] { return ID[To]{raw: id.raw} }

// DuplicateError is returned by InsertNew when the key is already mapped.
// Value carries the rejected value back to the caller.
type DuplicateError[V any] struct {
	Key   string
	ID    ID[V]
	Value V
}

func (e *DuplicateError[V]) Error() string {
	return fmt.Sprintf("key %q is already mapped to slot %d", e.Key, e.ID.raw)
}

type slot[V any] struct {
	key   string
	value V
	live  bool
}

// Map stores values in dense slots addressable both by key and by ID.
// The zero value is ready to use.
type Map[V any] struct {
	slots []slot[V]
	free  []int
	keys  map[string]int
}

// New creates an empty Map with room for n values.
func New[V any](n int) *Map[V] {
	return &Map[V]{
		slots: make([]slot[V], 0, n),
		keys:  make(map[string]int, n),
	}
}

func (m *Map[V]) alloc(key string) int {
	if m.keys == nil {
		m.keys = make(map[string]int)
	}
	var idx int
	if len(m.free) > 0 {
		idx = m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
	} else {
		idx = len(m.slots)
		m.slots = append(m.slots, slot[V]{})
	}
	m.slots[idx].key = key
	m.slots[idx].live = true
	m.keys[key] = idx
	return idx
}

// Insert maps key to value. If the key is already mapped the value is
// replaced in place, keeping the ID, and the previous value is returned with
// replaced set to true.
func (m *Map[V]) Insert(key string, value V) (id ID[V], previous V, replaced bool) {
	return m.InsertWithID(key, func(ID[V]) V { return value })
}

// InsertWithID is Insert for values that need to embed their own ID.
func (m *Map[V]) InsertWithID(key string, build func(ID[V]) V) (id ID[V], previous V, replaced bool) {
	if idx, ok := m.keys[key]; ok {
		id = ID[V]{raw: idx}
		previous = m.slots[idx].value
		m.slots[idx].value = build(id)
		return id, previous, true
	}
	idx := m.alloc(key)
	id = ID[V]{raw: idx}
	m.slots[idx].value = build(id)
	return id, previous, false
}

// InsertNew maps key to value, failing with *DuplicateError if the key is
// already mapped.
func (m *Map[V]) InsertNew(key string, value V) (ID[V], error) {
	return m.InsertNewWithID(key, func(ID[V]) V { return value })
}

// InsertNewWithID is InsertNew for values that need to embed their own ID.
// On duplicates build is called with the existing ID.
func (m *Map[V]) InsertNewWithID(key string, build func(ID[V]) V) (ID[V], error) {
	if idx, ok := m.keys[key]; ok {
		id := ID[V]{raw: idx}
		return id, &DuplicateError[V]{Key: key, ID: id, Value: build(id)}
	}
	idx := m.alloc(key)
	id := ID[V]{raw: idx}
	m.slots[idx].value = build(id)
	return id, nil
}

// Get returns the value stored at id.
func (m *Map[V]) Get(id ID[V]) (V, bool) {
	return m.GetRaw(id.raw)
}

// GetUntyped returns the value stored at an untyped id.
func (m *Map[V]) GetUntyped(id UntypedID) (V, bool) {
	return m.GetRaw(id.raw)
}

// GetRaw returns the value stored at a raw slot index.
func (m *Map[V]) GetRaw(idx int) (V, bool) {
	if idx < 0 || idx >= len(m.slots) || !m.slots[idx].live {
		var zero V
		return zero, false
	}
	return m.slots[idx].value, true
}

// GetByKey returns the value mapped to key.
func (m *Map[V]) GetByKey(key string) (V, bool) {
	idx, ok := m.keys[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.slots[idx].value, true
}

// MustGet returns the value stored at id and panics if there is none.
func (m *Map[V]) MustGet(id ID[V]) V {
	v, ok := m.Get(id)
	if !ok {
		panic(fmt.Sprintf("slab: no value at slot %d (len %d)", id.raw, len(m.slots)))
	}
	return v
}

// Ptr returns a pointer to the value stored at id, or nil. The pointer is
// invalidated by the next insertion.
func (m *Map[V]) Ptr(id ID[V]) *V {
	if id.raw < 0 || id.raw >= len(m.slots) || !m.slots[id.raw].live {
		return nil
	}
	return &m.slots[id.raw].value
}

// KeyToID returns the ID mapped to key.
func (m *Map[V]) KeyToID(key string) (ID[V], bool) {
	idx, ok := m.keys[key]
	return ID[V]{raw: idx}, ok
}

// Key returns the key mapped to id.
func (m *Map[V]) Key(id ID[V]) (string, bool) {
	return m.UntypedKey(id.Untyped())
}

// UntypedKey returns the key mapped to an untyped id.
func (m *Map[V]) UntypedKey(id UntypedID) (string, bool) {
	if id.raw < 0 || id.raw >= len(m.slots) || !m.slots[id.raw].live {
		return "", false
	}
	return m.slots[id.raw].key, true
}

// Remove unmaps id. The slot may be handed out again by a later insertion.
func (m *Map[V]) Remove(id ID[V]) (V, bool) {
	v, ok := m.Get(id)
	if !ok {
		return v, false
	}
	s := &m.slots[id.raw]
	delete(m.keys, s.key)
	*s = slot[V]{}
	m.free = append(m.free, id.raw)
	return v, true
}

// Len returns the number of mapped keys.
func (m *Map[V]) Len() int { return len(m.keys) }

// Cap returns the number of allocated slots, live or free. Every live ID is
// below Cap, which makes it usable as a dense array length.
func (m *Map[V]) Cap() int { return len(m.slots) }

// Each calls fn for every live slot in ID order. Returning false stops the
// iteration.
func (m *Map[V]) Each(fn func(id ID[V], key string, value V) bool) {
	for idx := range m.slots {
		s := &m.slots[idx]
		if !s.live {
			continue
		}
		if !fn(ID[V]{raw: idx}, s.key, s.value) {
			return
		}
	}
}
