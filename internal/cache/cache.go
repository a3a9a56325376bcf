// Package cache provides memoization that is invalidated by explicit
// events rather than by age.
package cache

import "sync"

// Memo caches the result of a computation per key until Clear or Delete is
// called. Failed computations are not cached.
type Memo[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// NewMemo creates an empty memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{entries: make(map[K]V)}
}

// Get returns the cached value for key, computing and storing it when
// absent. compute runs with the memo unlocked.
func (m *Memo[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	if v, ok := m.Peek(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	m.Set(key, v)
	return v, nil
}

// Peek returns the cached value for key without computing it.
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set stores v under key.
func (m *Memo[K, V]) Set(key K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = v
}

// Delete removes a cache entry.
func (m *Memo[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear removes all cache entries.
func (m *Memo[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[K]V)
}

// Size returns the number of cache entries.
func (m *Memo[K, V]) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
