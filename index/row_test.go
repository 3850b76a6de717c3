package index

import (
	"testing"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinate(t *testing.T) {
	b := EncodeCoordinate(-12.5)
	assert.Len(t, b, CoordinateSize)

	v, err := DecodeCoordinate(b)
	require.NoError(t, err)
	assert.Equal(t, -12.5, v)

	_, err = DecodeCoordinate(b[:3])
	assert.ErrorIs(t, err, model.ErrMalformedValue)
}

func TestModel_Row(t *testing.T) {
	m := unitModel(t, 8)
	l, err := adapter.NewLayout("poi", m.DimensionFields(), "name")
	require.NoError(t, err)

	e := adapter.Encoded{
		DataID: []byte("p1"),
		Fields: []adapter.Field{
			{ID: "name", Ordinal: 2, Value: []byte("cafe")},
			{ID: "x", Ordinal: 0, Value: EncodeCoordinate(0.5)},
			{ID: "y", Ordinal: 1, Value: EncodeCoordinate(0.25)},
		},
	}
	row, err := m.Row(l.ID(), e)
	require.NoError(t, err)

	indexKey, dataID, err := model.SplitSortKey(row.Key.SortKey)
	require.NoError(t, err)
	want, _ := m.IndexKey([]float64{0.5, 0.25})
	assert.Equal(t, want, indexKey)
	assert.Equal(t, "p1", string(dataID))
	assert.Equal(t, m.Partition([]byte("p1")), row.Key.Partition)
	assert.Equal(t, model.AdapterID("poi"), row.Key.AdapterID)

	fields, err := adapter.DecodeFields(l, row.Key.Bitmask, row.Value)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, model.FieldID("x"), fields[0].ID)
	assert.Equal(t, "cafe", string(fields[2].Value))
}

func TestModel_RowMissingDimension(t *testing.T) {
	m := unitModel(t, 8)
	_, err := m.Row("poi", adapter.Encoded{DataID: []byte("p"), Fields: []adapter.Field{{ID: "x", Value: EncodeCoordinate(0)}}})
	assert.Error(t, err)
}
