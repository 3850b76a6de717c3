package index

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/model"
)

// CoordinateSize is the encoded size of a dimension value.
const CoordinateSize = 8

// EncodeCoordinate encodes a dimension value as a big-endian IEEE 754 double.
func EncodeCoordinate(v float64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, CoordinateSize), math.Float64bits(v))
}

// DecodeCoordinate decodes a value written by EncodeCoordinate.
func DecodeCoordinate(b []byte) (float64, error) {
	if len(b) != CoordinateSize {
		return 0, fmt.Errorf("%w: coordinate of %d bytes", model.ErrMalformedValue, len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Point extracts the indexed point from encoded fields. Every dimension
// field must be present.
func (m *Model) Point(e adapter.Encoded) ([]float64, error) {
	point := make([]float64, len(m.Dimensions))
	for i, d := range m.Dimensions {
		v, ok := e.Field(d.FieldID)
		if !ok {
			return nil, fmt.Errorf("index %s: missing dimension field %s", m.ID, d.FieldID)
		}
		c, err := DecodeCoordinate(v)
		if err != nil {
			return nil, fmt.Errorf("index %s: dimension %s: %w", m.ID, d.FieldID, err)
		}
		point[i] = c
	}
	return point, nil
}

// Row builds the stored row of an encoded entry.
func (m *Model) Row(adapterID model.AdapterID, e adapter.Encoded) (model.Row, error) {
	point, err := m.Point(e)
	if err != nil {
		return model.Row{}, err
	}
	indexKey, err := m.IndexKey(point)
	if err != nil {
		return model.Row{}, err
	}
	sortKey, err := model.JoinSortKey(indexKey, e.DataID)
	if err != nil {
		return model.Row{}, err
	}
	mask, value, err := adapter.EncodeRow(e)
	if err != nil {
		return model.Row{}, err
	}
	return model.Row{
		Key: model.Key{
			Partition: m.Partition(e.DataID),
			SortKey:   sortKey,
			AdapterID: adapterID,
			Bitmask:   mask,
		},
		Value: value,
	}, nil
}
