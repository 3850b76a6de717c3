package kv

import (
	"bytes"
	"errors"
)

// source yields entries in strictly ascending key order.
type source interface {
	next() bool
	entry() entry
	err() error
	close() error
}

type mergeItem struct {
	src int // index into sources; lower is newer
	e   entry
}

// mergeHeap is a binary min-heap of the current head of every source,
// ordered by key and then by source age (newest first).
type mergeHeap struct {
	items []mergeItem
}

func (h *mergeHeap) len() int { return len(h.items) }

func (h *mergeHeap) less(i, j int) bool {
	if c := bytes.Compare(h.items[i].e.key, h.items[j].e.key); c != 0 {
		return c < 0
	}
	return h.items[i].src < h.items[j].src
}

func (h *mergeHeap) push(it mergeItem) {
	h.items = append(h.items, it)
	h.siftUp(len(h.items) - 1)
}

func (h *mergeHeap) pop() mergeItem {
	n := len(h.items)
	root := h.items[0]
	last := h.items[n-1]
	h.items[n-1] = mergeItem{}
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root
}

func (h *mergeHeap) top() mergeItem { return h.items[0] }

func (h *mergeHeap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *mergeHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(r, l) {
			best = r
		}
		if !h.less(best, i) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}

// mergeIterator merges sources into one ascending, de-duplicated stream.
type mergeIterator struct {
	sources []source
	heap    mergeHeap
	cur     entry
	started bool
	e       error
}

// newMergeIterator merges sources. sources[0] takes precedence over
// sources[1] and so on for equal keys.
func newMergeIterator(sources []source) *mergeIterator {
	return &mergeIterator{
		sources: sources,
		heap:    mergeHeap{items: make([]mergeItem, 0, len(sources))},
	}
}

func (m *mergeIterator) advance(i int) bool {
	s := m.sources[i]
	if s.next() {
		m.heap.push(mergeItem{src: i, e: s.entry()})
		return true
	}
	if err := s.err(); err != nil {
		m.e = err
		return false
	}
	return true
}

func (m *mergeIterator) next() bool {
	if m.e != nil {
		return false
	}
	if !m.started {
		m.started = true
		for i := range m.sources {
			if !m.advance(i) {
				return false
			}
		}
	}
	if m.heap.len() == 0 {
		return false
	}

	it := m.heap.pop()
	m.cur = it.e
	if !m.advance(it.src) {
		return false
	}
	// Drop shadowed versions of the same key from older sources.
	for m.heap.len() > 0 && bytes.Equal(m.heap.top().e.key, it.e.key) {
		dup := m.heap.pop()
		if !m.advance(dup.src) {
			return false
		}
	}
	return true
}

func (m *mergeIterator) entry() entry { return m.cur }

func (m *mergeIterator) err() error { return m.e }

func (m *mergeIterator) close() error {
	var errs []error
	for _, s := range m.sources {
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
