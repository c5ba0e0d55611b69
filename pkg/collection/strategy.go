package collection

// Strategy reconciles a batch of incoming elements with the existing map.
// ids[i] is the identity of incoming[i]. Strategies mutate m directly.
type Strategy[I comparable, E any] func(m *Map[I, E], ids []I, incoming []E)

// RemoveAndAppend removes any existing element whose ID matches an incoming
// element, then appends all incoming elements at the tail in batch order.
// Refreshed elements therefore move to the end of the collection.
func RemoveAndAppend[I comparable, E any]() Strategy[I, E] {
	return func(m *Map[I, E], ids []I, incoming []E) {
		for _, id := range ids {
			m.Delete(id)
		}
		for i, e := range incoming {
			m.Set(ids[i], e)
		}
	}
}

// UpdateOrAppend replaces existing elements in place (position unchanged)
// and appends unseen IDs at the tail.
func UpdateOrAppend[I comparable, E any]() Strategy[I, E] {
	return func(m *Map[I, E], ids []I, incoming []E) {
		for i, e := range incoming {
			m.Set(ids[i], e)
		}
	}
}

// IgnoreOrAppend leaves existing elements untouched and appends only
// unseen IDs.
func IgnoreOrAppend[I comparable, E any]() Strategy[I, E] {
	return func(m *Map[I, E], ids []I, incoming []E) {
		for i, e := range incoming {
			if _, ok := m.Value(ids[i]); ok {
				continue
			}
			m.Set(ids[i], e)
		}
	}
}

// Custom adapts a caller-supplied merge function into a Strategy. The
// function receives the incoming elements with their IDs and mutable
// access to the backing ordered map.
func Custom[I comparable, E any](fn func(m *Map[I, E], ids []I, incoming []E)) Strategy[I, E] {
	return fn
}
