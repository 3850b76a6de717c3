package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct {
	sliceSource
	failAt int
	e      error
	closed bool
}

func (f *failingSource) next() bool {
	if f.pos+1 == f.failAt {
		f.e = errors.New("boom")
		return false
	}
	return f.sliceSource.next()
}

func (f *failingSource) err() error { return f.e }

func (f *failingSource) close() error {
	f.closed = true
	return nil
}

func entriesOf(keys ...string) []entry {
	out := make([]entry, len(keys))
	for i, k := range keys {
		out[i] = entry{key: []byte(k), value: []byte(k)}
	}
	return out
}

func TestMergeIteratorOrder(t *testing.T) {
	a := newSliceSource(entriesOf("a", "d", "g"), All())
	b := newSliceSource(entriesOf("b", "e"), All())
	c := newSliceSource(entriesOf("c", "f", "h", "i"), All())

	it := newMergeIterator([]source{a, b, c})
	var got []string
	for it.next() {
		got = append(got, string(it.entry().key))
	}
	require.NoError(t, it.err())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, got)
}

func TestMergeIteratorPrecedence(t *testing.T) {
	newer := entriesOf("b", "c")
	newer[0].value = []byte("new-b")
	older := entriesOf("a", "b", "c", "d")
	oldest := entriesOf("c")
	oldest[0].value = []byte("old-c")

	it := newMergeIterator([]source{
		newSliceSource(newer, All()),
		newSliceSource(older, All()),
		newSliceSource(oldest, All()),
	})
	got := map[string]string{}
	var order []string
	for it.next() {
		e := it.entry()
		got[string(e.key)] = string(e.value)
		order = append(order, string(e.key))
	}
	require.NoError(t, it.err())
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, "new-b", got["b"])
	assert.Equal(t, "c", got["c"])
}

func TestMergeIteratorEmpty(t *testing.T) {
	it := newMergeIterator(nil)
	assert.False(t, it.next())
	assert.NoError(t, it.err())
	assert.NoError(t, it.close())
}

func TestMergeIteratorSourceError(t *testing.T) {
	f := &failingSource{
		sliceSource: *newSliceSource(entriesOf("a", "c", "e"), All()),
		failAt:      2,
	}
	it := newMergeIterator([]source{newSliceSource(entriesOf("b", "d", "f"), All()), f})

	var got []string
	for it.next() {
		got = append(got, string(it.entry().key))
	}
	assert.EqualError(t, it.err(), "boom")
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, it.close())
	assert.True(t, f.closed)
}
