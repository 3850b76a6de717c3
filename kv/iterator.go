package kv

import (
	"fmt"
	"slices"

	"github.com/hupe1980/geokv/model"
)

// RowTransform rewrites a row inside a scan. It returns false to drop the
// row.
type RowTransform func(model.Row) (model.Row, bool, error)

// IteratorFactory builds a RowTransform from opaque options.
type IteratorFactory func(opts map[string]string) (RowTransform, error)

// RegisterIterator makes an iterator available to scans under name.
func (s *Store) RegisterIterator(name string, f IteratorFactory) error {
	if name == "" || f == nil {
		return fmt.Errorf("kv: iterator needs a name and a factory")
	}
	s.itersMu.Lock()
	defer s.itersMu.Unlock()
	if _, ok := s.iterators[name]; ok {
		return fmt.Errorf("%w: %s", ErrIteratorExists, name)
	}
	s.iterators[name] = f
	return nil
}

// Iterators returns the sorted names of the registered iterators.
func (s *Store) Iterators() []string {
	s.itersMu.RLock()
	defer s.itersMu.RUnlock()
	names := make([]string, 0, len(s.iterators))
	for name := range s.iterators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) transforms(settings []iteratorSetting) ([]RowTransform, error) {
	if len(settings) == 0 {
		return nil, nil
	}
	s.itersMu.RLock()
	defer s.itersMu.RUnlock()

	out := make([]RowTransform, 0, len(settings))
	for _, st := range settings {
		f, ok := s.iterators[st.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIterator, st.name)
		}
		t, err := f(st.opts)
		if err != nil {
			return nil, fmt.Errorf("kv: iterator %s: %w", st.name, err)
		}
		out = append(out, t)
	}
	return out, nil
}
