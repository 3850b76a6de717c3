package index

import (
	"bytes"
	"fmt"
	"math"
	"slices"
)

// DefaultMaxRanges bounds the number of key ranges a box decomposes into.
const DefaultMaxRanges = 32

// KeyRange is an inclusive interval of index keys.
type KeyRange struct {
	Lo []byte
	Hi []byte
}

func (r KeyRange) String() string { return fmt.Sprintf("[%x, %x]", r.Lo, r.Hi) }

// node is a Z-order quadrant: the cells whose top level bits equal prefix.
type node struct {
	level  int
	prefix []uint32
}

// Ranges decomposes the box [minPoint, maxPoint] into index key ranges.
// The ranges cover every cell intersecting the box and may cover more: once
// refining would exceed maxRanges, partially covered quadrants are emitted
// whole. A box outside the model bounds yields no ranges.
func (m *Model) Ranges(minPoint, maxPoint []float64, maxRanges int) ([]KeyRange, error) {
	d := len(m.Dimensions)
	if len(minPoint) != d || len(maxPoint) != d {
		return nil, fmt.Errorf("index %s: expected %d coordinates per corner", m.ID, d)
	}
	if maxRanges <= 0 {
		maxRanges = DefaultMaxRanges
	}

	lo := make([]uint32, d)
	hi := make([]uint32, d)
	for i, dim := range m.Dimensions {
		a, b := minPoint[i], maxPoint[i]
		if math.IsNaN(a) || math.IsNaN(b) || a > b {
			return nil, fmt.Errorf("index %s: invalid extent [%g, %g] for %s", m.ID, a, b, dim.FieldID)
		}
		if b < dim.Min || a > dim.Max {
			return nil, nil
		}
		lo[i], _ = m.quantize(i, max(a, dim.Min))
		hi[i], _ = m.quantize(i, min(b, dim.Max))
	}

	var out []KeyRange
	level := []node{{prefix: make([]uint32, d)}}
	for len(level) > 0 {
		var partial []node
		for _, n := range level {
			switch m.classify(n, lo, hi) {
			case inside:
				out = append(out, m.keyRange(n))
			case overlap:
				partial = append(partial, n)
			}
		}
		if len(partial) == 0 {
			break
		}
		children := len(partial) << d
		if partial[0].level == m.Bits || len(out)+children > maxRanges {
			for _, n := range partial {
				out = append(out, m.keyRange(n))
			}
			break
		}
		level = make([]node, 0, children)
		for _, n := range partial {
			for c := range 1 << d {
				child := node{level: n.level + 1, prefix: make([]uint32, d)}
				for i := range d {
					child.prefix[i] = n.prefix[i]<<1 | uint32(c>>(d-1-i)&1)
				}
				level = append(level, child)
			}
		}
	}
	return m.mergeRanges(out), nil
}

type coverage uint8

const (
	disjoint coverage = iota
	overlap
	inside
)

func (m *Model) classify(n node, lo, hi []uint32) coverage {
	shift := uint(m.Bits - n.level)
	res := inside
	for i, p := range n.prefix {
		first := uint64(p) << shift
		last := (uint64(p)+1)<<shift - 1
		if last < uint64(lo[i]) || first > uint64(hi[i]) {
			return disjoint
		}
		if first < uint64(lo[i]) || last > uint64(hi[i]) {
			res = overlap
		}
	}
	return res
}

func (m *Model) keyRange(n node) KeyRange {
	shift := uint(m.Bits - n.level)
	first := make([]uint32, len(n.prefix))
	last := make([]uint32, len(n.prefix))
	for i, p := range n.prefix {
		first[i] = uint32(uint64(p) << shift)
		last[i] = uint32((uint64(p)+1)<<shift - 1)
	}
	return KeyRange{Lo: m.interleave(first), Hi: m.interleave(last)}
}

// mergeRanges sorts ranges and joins the ones that touch.
func (m *Model) mergeRanges(rs []KeyRange) []KeyRange {
	if len(rs) < 2 {
		return rs
	}
	slices.SortFunc(rs, func(a, b KeyRange) int { return bytes.Compare(a.Lo, b.Lo) })
	bits := len(m.Dimensions) * m.Bits
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		next, ok := incrementKey(last.Hi, bits)
		if bytes.Compare(r.Lo, last.Hi) <= 0 || (ok && bytes.Equal(next, r.Lo)) {
			if bytes.Compare(r.Hi, last.Hi) > 0 {
				last.Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// incrementKey adds one to a key of the given bit length. It reports false
// on overflow.
func incrementKey(key []byte, bits int) ([]byte, bool) {
	out := bytes.Clone(key)
	pos := bits - 1
	carry := uint16(0x80 >> (pos % 8))
	for i := pos / 8; i >= 0; i-- {
		sum := uint16(out[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
		if carry == 0 {
			return out, true
		}
	}
	return out, false
}

// PartitionKeys returns every partition key of the model.
func (m *Model) PartitionKeys() [][]byte {
	n := max(m.Partitions, 1)
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}
