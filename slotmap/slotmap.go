// Package slotmap implements a generational slot map: a handle store with
// stable opaque ids, O(1) insert and remove, and densely packed values for
// fast iteration. Stale handles are detected through a per-slot version
// whose parity encodes occupancy (odd = occupied, even = vacant), so a
// handle held across a remove and a slot reuse reads as "not found" instead
// of aliasing the new occupant.
package slotmap

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ID is an opaque handle to a value in a Map. The zero ID is never
// occupied: live handles always carry an odd version >= 1.
type ID struct {
	Index   uint32
	Version uint32
}

func (id ID) IsNil() bool {
	return id.Version == 0
}

type slot struct {
	// Even = vacant, odd = occupied.
	version uint32
	// Index into dense when occupied, next free slot otherwise.
	idxOrFree uint32
}

func (s slot) isOccupied() bool {
	return s.version%2 != 0
}

type entry[V any] struct {
	ID    ID
	Value V
}

// Map is not internally synchronized. The owner provides serialization.
type Map[V any] struct {
	dense []entry[V]
	slots []slot

	// freeHead points to the next vacant slot, or to len(slots) as a
	// sentinel meaning "append a new one".
	freeHead int
}

// New returns a map with capacity reserved for the dense storage. Slots
// grow as needed.
func New[V any](capacity int) *Map[V] {
	return &Map[V]{
		dense: make([]entry[V], 0, capacity),
	}
}

func (m *Map[V]) Len() int {
	return len(m.dense)
}

func (m *Map[V]) Insert(value V) ID {
	if len(m.slots) >= math.MaxUint32 {
		logs.Fatal(errors.New("slot map slot count overflow"))
		return ID{}
	}

	index := m.freeHead
	var version uint32

	if index < len(m.slots) {
		s := &m.slots[index]
		version = s.version | 1
		m.freeHead = int(s.idxOrFree)

		s.version = version
		s.idxOrFree = uint32(len(m.dense))
	} else {
		version = 1
		m.slots = append(m.slots, slot{version: 1, idxOrFree: uint32(len(m.dense))})
		m.freeHead = len(m.slots)
	}

	id := ID{Index: uint32(index), Version: version}
	m.dense = append(m.dense, entry[V]{ID: id, Value: value})
	return id
}

// Remove returns the value held under id, or false when id is stale or out
// of range. The last dense entry is swapped into the vacated position and
// its backing slot is repointed.
func (m *Map[V]) Remove(id ID) (V, bool) {
	var zero V

	if id.Index >= uint32(len(m.slots)) {
		return zero, false
	}

	s := &m.slots[id.Index]
	if !s.isOccupied() || s.version != id.Version {
		return zero, false
	}

	denseIdx := int(s.idxOrFree)
	value := m.dense[denseIdx].Value

	// Free the slot.
	s.version++
	s.idxOrFree = uint32(m.freeHead)
	m.freeHead = int(id.Index)

	last := len(m.dense) - 1
	if denseIdx != last {
		m.dense[denseIdx] = m.dense[last]
		m.slots[m.dense[denseIdx].ID.Index].idxOrFree = uint32(denseIdx)
	}
	m.dense[last] = entry[V]{}
	m.dense = m.dense[:last]

	return value, true
}

func (m *Map[V]) Contains(id ID) bool {
	if id.Index >= uint32(len(m.slots)) {
		return false
	}

	s := m.slots[id.Index]
	return s.isOccupied() && s.version == id.Version
}

// Get returns a pointer into the dense storage, or nil when id is stale or
// out of range. The pointer is invalidated by the next Insert or Remove.
func (m *Map[V]) Get(id ID) *V {
	if id.Index >= uint32(len(m.slots)) {
		return nil
	}

	s := m.slots[id.Index]
	if !s.isOccupied() || s.version != id.Version {
		return nil
	}
	return &m.dense[s.idxOrFree].Value
}

// ApplyAt projects (id, value) to fn if id is live, and is a no-op
// otherwise.
func (m *Map[V]) ApplyAt(id ID, fn func(ID, *V)) {
	if id.Index >= uint32(len(m.slots)) {
		return
	}

	if s := m.slots[id.Index]; s.isOccupied() && s.version == id.Version {
		e := &m.dense[s.idxOrFree]
		fn(e.ID, &e.Value)
	}
}

// ForEach iterates the dense storage. Order is insertion order disturbed by
// swap-removes; callers must not rely on it.
func (m *Map[V]) ForEach(fn func(ID, *V)) {
	for i := range m.dense {
		e := &m.dense[i]
		fn(e.ID, &e.Value)
	}
}
