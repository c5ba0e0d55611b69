// Package collection provides an ordered identity-keyed element collection
// with pluggable append strategies for reconciling newly fetched pages.
package collection

// Map is an ID -> element mapping that preserves insertion order.
// Every key is present exactly once; iteration order is stable between
// mutations except for repositioning performed by an append strategy.
//
// Map is not safe for concurrent use; callers serialize access.
type Map[I comparable, E any] struct {
	keys   []I
	values map[I]E
}

// NewMap creates an empty ordered map.
func NewMap[I comparable, E any]() *Map[I, E] {
	return &Map[I, E]{
		values: make(map[I]E),
	}
}

// Len returns the number of elements.
func (m *Map[I, E]) Len() int {
	return len(m.keys)
}

// Get returns the element at position i. It panics if i is out of range,
// mirroring slice indexing.
func (m *Map[I, E]) Get(i int) E {
	return m.values[m.keys[i]]
}

// Key returns the ID at position i.
func (m *Map[I, E]) Key(i int) I {
	return m.keys[i]
}

// Value returns the element stored under id.
func (m *Map[I, E]) Value(id I) (E, bool) {
	e, ok := m.values[id]
	return e, ok
}

// Index returns the position of id, or -1 if absent.
func (m *Map[I, E]) Index(id I) int {
	if _, ok := m.values[id]; !ok {
		return -1
	}
	for i, k := range m.keys {
		if k == id {
			return i
		}
	}
	return -1
}

// Set updates the element under id in place, or appends it at the tail
// when id is not present.
func (m *Map[I, E]) Set(id I, e E) {
	if _, ok := m.values[id]; !ok {
		m.keys = append(m.keys, id)
	}
	m.values[id] = e
}

// Delete removes id and reports whether it was present.
func (m *Map[I, E]) Delete(id I) bool {
	if _, ok := m.values[id]; !ok {
		return false
	}
	delete(m.values, id)
	for i, k := range m.keys {
		if k == id {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// RemoveAll discards every element.
func (m *Map[I, E]) RemoveAll() {
	m.keys = m.keys[:0]
	m.values = make(map[I]E)
}

// Keys returns a snapshot of the IDs in order.
func (m *Map[I, E]) Keys() []I {
	out := make([]I, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns a snapshot of the elements in order.
func (m *Map[I, E]) Values() []E {
	out := make([]E, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// Append merges incoming elements into the map under the given strategy.
// IDs are extracted with identify; within one incoming batch the last
// write wins for update-style strategies, consistent with map semantics.
func (m *Map[I, E]) Append(incoming []E, identify func(E) I, strategy Strategy[I, E]) {
	if strategy == nil {
		strategy = UpdateOrAppend[I, E]()
	}
	ids := make([]I, len(incoming))
	for i, e := range incoming {
		ids[i] = identify(e)
	}
	strategy(m, ids, incoming)
}
