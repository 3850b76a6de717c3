package filter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/bitmask"
	"github.com/hupe1980/geokv/fieldvalue"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/model"
)

// Filter decides whether a raw row is kept.
type Filter interface {
	Accept(m adapter.Model, row model.Row) (bool, error)
}

// Func adapts a function to Filter.
type Func func(m adapter.Model, row model.Row) (bool, error)

// Accept implements Filter.
func (f Func) Accept(m adapter.Model, row model.Row) (bool, error) { return f(m, row) }

// frame returns the value of field id in row. ok is false when the row does
// not hold the field.
func frame(m adapter.Model, row model.Row, id model.FieldID) (v []byte, ok bool, err error) {
	pos, known := m.Position(id)
	if !known {
		return nil, false, nil
	}
	set, err := bitmask.ToSet(row.Key.Bitmask)
	if err != nil {
		return nil, false, err
	}
	if !set.Test(uint(pos)) {
		return nil, false, nil
	}
	v, err = fieldvalue.Frame(row.Value, int(set.Rank(uint(pos)))-1)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// BBox accepts rows whose point lies inside [Min, Max] on every dimension of
// Index. Rows without all dimension fields are rejected.
type BBox struct {
	Index *index.Model
	Min   []float64
	Max   []float64
}

// NewBBox validates a bounding box against the index model.
func NewBBox(idx *index.Model, minPoint, maxPoint []float64) (*BBox, error) {
	n := len(idx.Dimensions)
	if len(minPoint) != n || len(maxPoint) != n {
		return nil, fmt.Errorf("bbox: index %s has %d dimensions", idx.ID, n)
	}
	for i := range n {
		if minPoint[i] > maxPoint[i] {
			return nil, fmt.Errorf("bbox: min %g > max %g on %s", minPoint[i], maxPoint[i], idx.Dimensions[i].FieldID)
		}
	}
	return &BBox{Index: idx, Min: minPoint, Max: maxPoint}, nil
}

// Accept implements Filter.
func (b *BBox) Accept(m adapter.Model, row model.Row) (bool, error) {
	for i, d := range b.Index.Dimensions {
		v, ok, err := frame(m, row, d.FieldID)
		if err != nil || !ok {
			return false, err
		}
		c, err := index.DecodeCoordinate(v)
		if err != nil {
			return false, err
		}
		if c < b.Min[i] || c > b.Max[i] {
			return false, nil
		}
	}
	return true, nil
}

// Contains reports whether a point lies inside the box.
func (b *BBox) Contains(point []float64) bool {
	if len(point) != len(b.Min) {
		return false
	}
	for i, c := range point {
		if c < b.Min[i] || c > b.Max[i] {
			return false
		}
	}
	return true
}

func (b *BBox) String() string {
	return fmt.Sprintf("bbox(%v, %v)", b.Min, b.Max)
}

// Equals accepts rows whose field holds exactly Value.
type Equals struct {
	Field model.FieldID
	Value []byte
}

// Accept implements Filter.
func (e Equals) Accept(m adapter.Model, row model.Row) (bool, error) {
	v, ok, err := frame(m, row, e.Field)
	if err != nil || !ok {
		return false, err
	}
	return bytes.Equal(v, e.Value), nil
}

// HasFields accepts rows that hold all of the given fields.
type HasFields []model.FieldID

// Accept implements Filter.
func (h HasFields) Accept(m adapter.Model, row model.Row) (bool, error) {
	required := roaring.New()
	for _, id := range h {
		pos, ok := m.Position(id)
		if !ok {
			return false, nil
		}
		required.Add(uint32(pos))
	}
	ordinals, err := bitmask.Decode(row.Key.Bitmask)
	if err != nil {
		return false, err
	}
	present := roaring.New()
	for _, o := range ordinals {
		present.Add(uint32(o))
	}
	return present.AndCardinality(required) == required.GetCardinality(), nil
}

// Adapters accepts rows of the listed adapters.
type Adapters map[model.AdapterID]struct{}

// NewAdapters returns an Adapters filter.
func NewAdapters(ids ...model.AdapterID) Adapters {
	a := make(Adapters, len(ids))
	for _, id := range ids {
		a[id] = struct{}{}
	}
	return a
}

// Accept implements Filter.
func (a Adapters) Accept(_ adapter.Model, row model.Row) (bool, error) {
	_, ok := a[row.Key.AdapterID]
	return ok, nil
}

type and []Filter

// And accepts rows accepted by every filter. It stops at the first rejection.
func And(filters ...Filter) Filter { return and(filters) }

func (fs and) Accept(m adapter.Model, row model.Row) (bool, error) {
	for _, f := range fs {
		ok, err := f.Accept(m, row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (fs and) String() string { return join("and", fs) }

type or []Filter

// Or accepts rows accepted by any filter. It stops at the first acceptance.
func Or(filters ...Filter) Filter { return or(filters) }

func (fs or) Accept(m adapter.Model, row model.Row) (bool, error) {
	for _, f := range fs {
		ok, err := f.Accept(m, row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (fs or) String() string { return join("or", fs) }

type not struct{ f Filter }

// Not inverts a filter. Errors are not inverted.
func Not(f Filter) Filter { return not{f: f} }

func (n not) Accept(m adapter.Model, row model.Row) (bool, error) {
	ok, err := n.f.Accept(m, row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func join(op string, fs []Filter) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = fmt.Sprint(f)
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}
