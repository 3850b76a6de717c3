package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func covered(rs []KeyRange, key []byte) bool {
	for _, r := range rs {
		if bytes.Compare(key, r.Lo) >= 0 && bytes.Compare(key, r.Hi) <= 0 {
			return true
		}
	}
	return false
}

func TestRanges_Exact(t *testing.T) {
	m := unitModel(t, 3)

	rs, err := m.Ranges([]float64{0.1, 0.3}, []float64{0.6, 0.55}, 1<<20)
	require.NoError(t, err)
	require.NotEmpty(t, rs)

	// Cells x in [0, 4] and y in [2, 4].
	for x := range uint32(8) {
		for y := range uint32(8) {
			key := m.interleave([]uint32{x, y})
			want := x <= 4 && y >= 2 && y <= 4
			assert.Equal(t, want, covered(rs, key), "cell (%d, %d)", x, y)
		}
	}
	for i := 1; i < len(rs); i++ {
		assert.Negative(t, bytes.Compare(rs[i-1].Hi, rs[i].Lo))
	}
}

func TestRanges_Budget(t *testing.T) {
	m := unitModel(t, 8)

	rs, err := m.Ranges([]float64{0.1, 0.1}, []float64{0.2, 0.7}, 1)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, KeyRange{Lo: []byte{0x00, 0x00}, Hi: []byte{0xFF, 0xFF}}, rs[0])

	rs, err = m.Ranges([]float64{0.1, 0.1}, []float64{0.2, 0.7}, 8)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(rs), 8)

	rng := []float64{0.1, 0.15, 0.2, 0.33, 0.5, 0.7}
	for _, x := range rng[:3] {
		for _, y := range rng {
			key, err := m.IndexKey([]float64{x, y})
			require.NoError(t, err)
			assert.True(t, covered(rs, key), "point (%g, %g)", x, y)
		}
	}
}

func TestRanges_WholeDomain(t *testing.T) {
	m := unitModel(t, 3)
	rs, err := m.Ranges([]float64{0, 0}, []float64{1, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []KeyRange{{Lo: []byte{0x00}, Hi: []byte{0xFC}}}, rs)
}

func TestRanges_Bounds(t *testing.T) {
	m := unitModel(t, 4)

	rs, err := m.Ranges([]float64{2, 2}, []float64{3, 3}, 0)
	require.NoError(t, err)
	assert.Empty(t, rs)

	// Clamped to the model bounds.
	rs, err = m.Ranges([]float64{-5, -5}, []float64{5, 5}, 0)
	require.NoError(t, err)
	assert.Len(t, rs, 1)

	_, err = m.Ranges([]float64{0.5, 0}, []float64{0.1, 1}, 0)
	assert.Error(t, err)
	_, err = m.Ranges([]float64{0}, []float64{1}, 0)
	assert.Error(t, err)
}

func TestIncrementKey(t *testing.T) {
	next, ok := incrementKey([]byte{0x00}, 6)
	require.True(t, ok)
	assert.Equal(t, []byte{0x04}, next)

	next, ok = incrementKey([]byte{0x00, 0xFF}, 16)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x00}, next)

	_, ok = incrementKey([]byte{0xFC}, 6)
	assert.False(t, ok)
}

func TestPartitionKeys(t *testing.T) {
	m := unitModel(t, 4)
	assert.Equal(t, [][]byte{{0}}, m.PartitionKeys())

	m.Partitions = 4
	keys := m.PartitionKeys()
	require.Len(t, keys, 4)
	for _, id := range []string{"a", "b", "c", "road-17"} {
		assert.Contains(t, keys, m.Partition([]byte(id)))
	}
}
