package bitmask

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/geokv/model"
)

// MaxOrdinal is the largest field ordinal an adapter may use.
const MaxOrdinal = 1<<16 - 1

// maxLen is the byte length of a bitmask holding MaxOrdinal.
const maxLen = MaxOrdinal/8 + 1

// Encode encodes a set of ordinals. Duplicates collapse and input order is
// irrelevant. The empty set encodes to an empty slice.
func Encode(ordinals []int) ([]byte, error) {
	if len(ordinals) == 0 {
		return []byte{}, nil
	}
	maxOrd := 0
	for _, o := range ordinals {
		if o < 0 || o > MaxOrdinal {
			return nil, fmt.Errorf("ordinal %d out of range [0, %d]", o, MaxOrdinal)
		}
		maxOrd = max(maxOrd, o)
	}

	set := bitset.New(uint(maxOrd + 1))
	for _, o := range ordinals {
		set.Set(uint(o))
	}
	return FromSet(set), nil
}

// FromSet encodes a bitset as a composite bitmask.
func FromSet(set *bitset.BitSet) []byte {
	top, ok := lastSet(set)
	if !ok {
		return []byte{}
	}
	out := make([]byte, top/8+1)
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		out[i/8] |= 1 << (i % 8)
	}
	return out
}

// Decode returns the ordinals of a bitmask in ascending order.
func Decode(b []byte) ([]int, error) {
	set, err := ToSet(b)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, set.Count())
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out, nil
}

// ToSet decodes a bitmask into a bitset.
func ToSet(b []byte) (*bitset.BitSet, error) {
	if len(b) > maxLen {
		return nil, fmt.Errorf("%w: bitmask of %d bytes exceeds %d", model.ErrMalformedValue, len(b), maxLen)
	}
	words := make([]uint64, (len(b)+7)/8)
	var buf [8]byte
	for w := range words {
		clear(buf[:])
		copy(buf[:], b[w*8:])
		words[w] = binary.LittleEndian.Uint64(buf[:])
	}
	return bitset.From(words), nil
}

// Count returns the number of ordinals in a bitmask.
func Count(b []byte) int {
	n := 0
	for _, x := range b {
		n += bits.OnesCount8(x)
	}
	return n
}

func lastSet(set *bitset.BitSet) (uint, bool) {
	var last uint
	found := false
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		last, found = i, true
	}
	return last, found
}
