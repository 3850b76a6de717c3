package kv

import (
	"bytes"
	"slices"
	"sync"
)

// memtable holds unflushed entries. Newer writes to a key replace older ones.
type memtable struct {
	mu      sync.RWMutex
	entries map[string]entry
	sorted  []entry
	dirty   bool
	bytes   int64
}

func newMemtable() *memtable {
	return &memtable{entries: make(map[string]entry)}
}

func (m *memtable) put(e entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := string(e.key)
	if old, ok := m.entries[k]; ok {
		m.bytes -= old.size()
	}
	m.entries[k] = e
	m.bytes += e.size()
	m.dirty = true
}

func (m *memtable) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *memtable) size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

// snapshot returns the entries in key order. The slice is shared and must
// not be modified; later writes do not affect it.
func (m *memtable) snapshot() []entry {
	m.mu.RLock()
	if !m.dirty {
		s := m.sorted
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty {
		sorted := make([]entry, 0, len(m.entries))
		for _, e := range m.entries {
			sorted = append(sorted, e)
		}
		slices.SortFunc(sorted, func(a, b entry) int { return bytes.Compare(a.key, b.key) })
		m.sorted = sorted
		m.dirty = false
	}
	return m.sorted
}

// sliceSource iterates a sorted entry slice within a range.
type sliceSource struct {
	entries []entry
	pos     int
	end     int
}

func newSliceSource(entries []entry, rng Range) *sliceSource {
	start := 0
	if rng.Start != nil {
		start, _ = slices.BinarySearchFunc(entries, rng.Start, func(e entry, k []byte) int {
			return bytes.Compare(e.key, k)
		})
	}
	end := len(entries)
	if rng.End != nil {
		end, _ = slices.BinarySearchFunc(entries, rng.End, func(e entry, k []byte) int {
			return bytes.Compare(e.key, k)
		})
	}
	return &sliceSource{entries: entries, pos: start - 1, end: max(end, start)}
}

func (s *sliceSource) next() bool {
	s.pos++
	return s.pos < s.end
}

func (s *sliceSource) entry() entry { return s.entries[s.pos] }

func (s *sliceSource) err() error { return nil }

func (s *sliceSource) close() error { return nil }

func (m *memtable) putIfAbsent(e entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := string(e.key)
	if _, ok := m.entries[k]; ok {
		return
	}
	m.entries[k] = e
	m.bytes += e.size()
	m.dirty = true
}
