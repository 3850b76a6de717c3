package index

import (
	"fmt"
	"math"

	"github.com/hupe1980/geokv/model"
)

// Subsampler reduces sort keys to the cell they fall into at a coarser
// resolution. Rows whose reduced keys are equal collapse into one entry.
type Subsampler struct {
	keyLen     int
	prefixBits int
}

// Subsampler returns the resolution-reduction rule for the given maximum
// resolution per dimension (in dimension units). A non-positive resolution
// keeps the full precision of that dimension.
//
// Z-order cells are contiguous only for uniform prefixes, so the finest
// requested dimension decides how many interleaved levels are kept.
func (m *Model) Subsampler(maxResolution []float64) (*Subsampler, error) {
	if len(maxResolution) != len(m.Dimensions) {
		return nil, fmt.Errorf("index %s: expected %d resolutions, got %d", m.ID, len(m.Dimensions), len(maxResolution))
	}
	levels := 0
	for i, res := range maxResolution {
		levels = max(levels, m.bitsFor(i, res))
	}
	return &Subsampler{keyLen: m.KeyLen(), prefixBits: levels * len(m.Dimensions)}, nil
}

func (m *Model) bitsFor(d int, res float64) int {
	if res <= 0 || math.IsNaN(res) {
		return m.Bits
	}
	dim := m.Dimensions[d]
	b := int(math.Ceil(math.Log2((dim.Max - dim.Min) / res)))
	return min(max(b, 0), m.Bits)
}

// Reduce returns the reduced index key of a sort key.
func (s *Subsampler) Reduce(sortKey []byte) ([]byte, error) {
	indexKey, _, err := model.SplitSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	if len(indexKey) != s.keyLen {
		return nil, fmt.Errorf("%w: index key of %d bytes, expected %d", model.ErrMalformedValue, len(indexKey), s.keyLen)
	}
	n := (s.prefixBits + 7) / 8
	out := make([]byte, n)
	copy(out, indexKey[:n])
	if rem := s.prefixBits % 8; rem != 0 {
		out[n-1] &= byte(0xFF << (8 - rem))
	}
	return out, nil
}

// PrefixBits returns the number of index key bits kept by Reduce.
func (s *Subsampler) PrefixBits() int { return s.prefixBits }
