package kv

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/geokv/model"
)

// Range is a half-open interval [Start, End) of encoded keys. A nil Start is
// unbounded below; a nil End is unbounded above.
type Range struct {
	Start []byte
	End   []byte
}

// All returns the range covering every key.
func All() Range { return Range{} }

// Exact returns the range holding only the entry with key k.
func Exact(k model.Key) Range {
	start := EncodeKey(k)
	end := append(bytes.Clone(start), 0x00)
	return Range{Start: start, End: end}
}

// Prefix returns the range of keys in partition whose sort key starts with
// sortKeyPrefix.
func Prefix(partition, sortKeyPrefix []byte) Range {
	p := appendComponent(nil, partition)
	p = appendEscaped(p, sortKeyPrefix)
	return Range{Start: p, End: successor(p)}
}

// Between returns the range [start, end) of keys.
func Between(start, end model.Key) Range {
	return Range{Start: EncodeKey(start), End: EncodeKey(end)}
}

// SortKeyRange returns the range of keys in partition whose sort key starts
// with a prefix p where lo <= p <= hi, comparing len(lo) bytes. Index keys of
// one model have a fixed length, so this selects an index-key interval.
func SortKeyRange(partition, lo, hi []byte) Range {
	head := appendComponent(nil, partition)
	start := appendEscaped(bytes.Clone(head), lo)
	end := successor(appendEscaped(head, hi))
	return Range{Start: start, End: end}
}

// Contains reports whether the encoded key k lies in r.
func (r Range) Contains(k []byte) bool {
	if r.Start != nil && bytes.Compare(k, r.Start) < 0 {
		return false
	}
	return r.End == nil || bytes.Compare(k, r.End) < 0
}

// Before reports whether every key of r is smaller than k.
func (r Range) Before(k []byte) bool {
	return r.End != nil && bytes.Compare(r.End, k) <= 0
}

// Empty reports whether r can hold no key.
func (r Range) Empty() bool {
	return r.Start != nil && r.End != nil && bytes.Compare(r.Start, r.End) >= 0
}

// Overlaps reports whether r intersects the closed interval [lo, hi].
func (r Range) Overlaps(lo, hi []byte) bool {
	if r.Start != nil && bytes.Compare(hi, r.Start) < 0 {
		return false
	}
	return r.End == nil || bytes.Compare(lo, r.End) < 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%x, %x)", r.Start, r.End)
}
