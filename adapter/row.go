package adapter

import (
	"fmt"
	"slices"

	"github.com/hupe1980/geokv/bitmask"
	"github.com/hupe1980/geokv/fieldvalue"
	"github.com/hupe1980/geokv/model"
)

// EncodeRow turns encoded fields into a composite bitmask and value blob.
// Fields are written in ascending ordinal order.
func EncodeRow(e Encoded) (mask, value []byte, err error) {
	fields := slices.Clone(e.Fields)
	slices.SortFunc(fields, func(a, b Field) int { return a.Ordinal - b.Ordinal })

	ordinals := make([]int, len(fields))
	blobs := make([][]byte, len(fields))
	for i, f := range fields {
		if i > 0 && fields[i-1].Ordinal == f.Ordinal {
			return nil, nil, fmt.Errorf("duplicate ordinal %d (%s)", f.Ordinal, f.ID)
		}
		ordinals[i] = f.Ordinal
		blobs[i] = f.Value
	}
	if mask, err = bitmask.Encode(ordinals); err != nil {
		return nil, nil, err
	}
	if value, err = fieldvalue.Serialize(blobs); err != nil {
		return nil, nil, err
	}
	return mask, value, nil
}

// DecodeFields resolves the fields of a (bitmask, value) pair against m.
func DecodeFields(m Model, mask, value []byte) ([]Field, error) {
	ordinals, err := bitmask.Decode(mask)
	if err != nil {
		return nil, err
	}
	blobs, err := fieldvalue.Deserialize(value, len(ordinals))
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(ordinals))
	for i, o := range ordinals {
		id, ok := m.FieldAt(o)
		if !ok {
			return nil, fmt.Errorf("%w: ordinal %d unknown to adapter %s", model.ErrMalformedValue, o, m.ID())
		}
		fields[i] = Field{ID: id, Ordinal: o, Value: blobs[i]}
	}
	return fields, nil
}

// DecodeRow decodes a stored row into an entry.
func DecodeRow[T any](a Adapter[T], row model.Row) (T, error) {
	var zero T
	fields, err := DecodeFields(a, row.Key.Bitmask, row.Value)
	if err != nil {
		return zero, err
	}
	_, dataID, err := model.SplitSortKey(row.Key.SortKey)
	if err != nil {
		return zero, err
	}
	return a.Decode(Encoded{DataID: dataID, Fields: fields})
}
