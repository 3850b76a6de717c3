package index

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/geokv/codec"
	"github.com/hupe1980/geokv/internal/hash"
	"github.com/hupe1980/geokv/model"
)

// ErrOutOfBounds is returned when a coordinate lies outside its dimension's range.
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// Dimension is a numeric dimension of the index.
type Dimension struct {
	FieldID model.FieldID `json:"field_id"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
}

// Model is a Z-order index model.
type Model struct {
	ID         string      `json:"id"`
	Dimensions []Dimension `json:"dimensions"`
	// Bits is the precision of each dimension (1..32).
	Bits int `json:"bits"`
	// Partitions spreads rows over this many partitions (1..256). 0 means 1.
	Partitions int `json:"partitions"`
}

// New creates and validates an index model.
func New(id string, bits int, dims ...Dimension) (*Model, error) {
	m := &Model{ID: id, Dimensions: dims, Bits: bits}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Spatial returns the common two-dimensional longitude/latitude model.
func Spatial(id string, bits int) (*Model, error) {
	return New(id, bits,
		Dimension{FieldID: "geom.x", Min: -180, Max: 180},
		Dimension{FieldID: "geom.y", Min: -90, Max: 90},
	)
}

// Validate checks the model for consistency.
func (m *Model) Validate() error {
	if m.ID == "" {
		return errors.New("index id must not be empty")
	}
	if len(m.Dimensions) == 0 {
		return fmt.Errorf("index %s: no dimensions", m.ID)
	}
	if m.Bits < 1 || m.Bits > 32 {
		return fmt.Errorf("index %s: bits must be in [1, 32], got %d", m.ID, m.Bits)
	}
	if m.Partitions < 0 || m.Partitions > 256 {
		return fmt.Errorf("index %s: partitions must be in [0, 256], got %d", m.ID, m.Partitions)
	}
	seen := make(map[model.FieldID]struct{}, len(m.Dimensions))
	for _, d := range m.Dimensions {
		if d.FieldID == "" {
			return fmt.Errorf("index %s: dimension without field id", m.ID)
		}
		if _, dup := seen[d.FieldID]; dup {
			return fmt.Errorf("index %s: duplicate dimension %s", m.ID, d.FieldID)
		}
		seen[d.FieldID] = struct{}{}
		if !(d.Max > d.Min) || math.IsInf(d.Max-d.Min, 0) {
			return fmt.Errorf("index %s: invalid bounds [%g, %g] for %s", m.ID, d.Min, d.Max, d.FieldID)
		}
	}
	return nil
}

// DimensionFields returns the field ids of the dimensions in order.
func (m *Model) DimensionFields() []model.FieldID {
	out := make([]model.FieldID, len(m.Dimensions))
	for i, d := range m.Dimensions {
		out[i] = d.FieldID
	}
	return out
}

// KeyLen returns the length of an index key in bytes.
func (m *Model) KeyLen() int {
	return (len(m.Dimensions)*m.Bits + 7) / 8
}

// IndexKey returns the Z-order key of a point.
func (m *Model) IndexKey(point []float64) ([]byte, error) {
	if len(point) != len(m.Dimensions) {
		return nil, fmt.Errorf("index %s: expected %d coordinates, got %d", m.ID, len(m.Dimensions), len(point))
	}
	cells := make([]uint32, len(point))
	for i, v := range point {
		c, err := m.quantize(i, v)
		if err != nil {
			return nil, err
		}
		cells[i] = c
	}

	return m.interleave(cells), nil
}

func (m *Model) interleave(cells []uint32) []byte {
	key := make([]byte, m.KeyLen())
	pos := 0
	for level := m.Bits - 1; level >= 0; level-- {
		for _, c := range cells {
			if c>>uint(level)&1 == 1 {
				key[pos/8] |= 0x80 >> (pos % 8)
			}
			pos++
		}
	}
	return key
}

// Cell returns the lower corner of the cell an index key addresses.
func (m *Model) Cell(key []byte) ([]float64, error) {
	if len(key) != m.KeyLen() {
		return nil, fmt.Errorf("%w: index key of %d bytes, expected %d", model.ErrMalformedValue, len(key), m.KeyLen())
	}
	cells := make([]uint32, len(m.Dimensions))
	pos := 0
	for level := m.Bits - 1; level >= 0; level-- {
		for d := range cells {
			if key[pos/8]&(0x80>>(pos%8)) != 0 {
				cells[d] |= 1 << uint(level)
			}
			pos++
		}
	}
	out := make([]float64, len(cells))
	for d, c := range cells {
		dim := m.Dimensions[d]
		out[d] = dim.Min + float64(c)*(dim.Max-dim.Min)/float64(uint64(1)<<uint(m.Bits))
	}
	return out, nil
}

// Partition returns the partition key of a data id.
func (m *Model) Partition(dataID []byte) []byte {
	return []byte{hash.Bucket(dataID, m.Partitions)}
}

func (m *Model) quantize(d int, v float64) (uint32, error) {
	dim := m.Dimensions[d]
	if math.IsNaN(v) || v < dim.Min || v > dim.Max {
		return 0, fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfBounds, dim.FieldID, v, dim.Min, dim.Max)
	}
	cells := float64(uint64(1) << uint(m.Bits))
	c := math.Floor((v - dim.Min) / (dim.Max - dim.Min) * cells)
	return uint32(min(c, cells-1)), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Model) MarshalBinary() ([]byte, error) {
	return codec.Default.Marshal(m)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Model) UnmarshalBinary(data []byte) error {
	var v Model
	if err := codec.Default.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode index model: %w", err)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	*m = v
	return nil
}
