package realtime

import "sync"

// Registry is a concurrency-safe set of values keyed by id.
// Add and Remove report whether they changed the set, so concurrent
// removers can tell which one actually removed an entry.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Add inserts v under id. It returns false if id is already present.
func (r *Registry[T]) Add(id string, v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return false
	}
	r.items[id] = v
	return true
}

// Remove deletes id and returns true only for the call that removed it.
func (r *Registry[T]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns the current values in no particular order.
func (r *Registry[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.items))
	for _, v := range r.items {
		out = append(out, v)
	}
	return out
}

// Each calls fn for every value present when Each was called. fn runs without
// the lock held and may mutate the registry. Returning false stops iteration.
func (r *Registry[T]) Each(fn func(v T) bool) {
	for _, v := range r.Snapshot() {
		if !fn(v) {
			return
		}
	}
}
