package adapter

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/geokv/model"
)

// Registry is a concurrency-safe Resolver.
type Registry[T any] struct {
	mu       sync.RWMutex
	adapters map[model.AdapterID]Adapter[T]
}

var _ Resolver[int] = (*Registry[int])(nil)

// NewRegistry creates a registry holding the given adapters.
func NewRegistry[T any](adapters ...Adapter[T]) (*Registry[T], error) {
	r := &Registry[T]{adapters: make(map[model.AdapterID]Adapter[T], len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter. Registering a second adapter under the same id fails.
func (r *Registry[T]) Register(a Adapter[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.adapters == nil {
		r.adapters = make(map[model.AdapterID]Adapter[T])
	}
	if _, ok := r.adapters[a.ID()]; ok {
		return fmt.Errorf("adapter %s already registered", a.ID())
	}
	r.adapters[a.ID()] = a
	return nil
}

// Remove deletes an adapter. It reports whether the adapter existed.
func (r *Registry[T]) Remove(id model.AdapterID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.adapters[id]
	delete(r.adapters, id)
	return ok
}

// Resolve implements Resolver.
func (r *Registry[T]) Resolve(id model.AdapterID) (Adapter[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the registered adapter ids in sorted order.
func (r *Registry[T]) IDs() []model.AdapterID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]model.AdapterID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
