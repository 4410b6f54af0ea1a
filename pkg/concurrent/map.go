package concurrent

import "sync"

// Map is a mutex-guarded map. Compute gives callers an atomic
// read-modify-write on a single key.
type Map[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.values[key]
	return val, ok
}

func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
}

func (m *Map[K, V]) Delete(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.values[key]
	delete(m.values, key)
	return ok
}

// DeleteFunc removes key only when match reports true for its current value.
func (m *Map[K, V]) DeleteFunc(key K, match func(V) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	if !ok || !match(current) {
		return false
	}
	delete(m.values, key)
	return true
}

// Compute calls f with the current value for key under the write lock.
// When f returns keep=false the key is left untouched; otherwise the returned
// value is stored. The error from f is passed through.
func (m *Map[K, V]) Compute(key K, f func(current V, exists bool) (next V, keep bool, err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.values[key]
	next, keep, err := f(current, exists)
	if err != nil {
		return err
	}
	if keep {
		m.values[key] = next
	}
	return nil
}

func (m *Map[K, V]) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}

// Values returns a copy of the values, in no particular order.
func (m *Map[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]V, 0, len(m.values))
	for _, v := range m.values {
		out = append(out, v)
	}
	return out
}

func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.values)
}
