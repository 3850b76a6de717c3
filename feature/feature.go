package feature

import (
	"fmt"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/model"
)

// Point holds one coordinate per index dimension.
type Point []float64

// Feature is a point with attributes.
type Feature struct {
	ID         string
	Geometry   Point
	Attributes map[model.FieldID]any
}

// Adapter stores features of one type against an index model.
type Adapter struct {
	*adapter.Layout
	idx   *index.Model
	types map[model.FieldID]Type
	attrs []Attribute
}

var _ adapter.Adapter[*Feature] = (*Adapter)(nil)

// NewAdapter creates a feature adapter. The index dimension fields come first
// in the field ordering, followed by attrs in declaration order.
func NewAdapter(id model.AdapterID, idx *index.Model, attrs ...Attribute) (*Adapter, error) {
	if idx == nil {
		return nil, fmt.Errorf("feature adapter %s: index model is required", id)
	}
	dims := idx.DimensionFields()
	types := make(map[model.FieldID]Type, len(attrs))
	names := make([]model.FieldID, 0, len(attrs))
	for _, a := range attrs {
		if _, dup := types[a.Name]; dup {
			return nil, fmt.Errorf("feature adapter %s: duplicate attribute %s", id, a.Name)
		}
		types[a.Name] = a.Type
		names = append(names, a.Name)
	}
	for _, d := range dims {
		if _, clash := types[d]; clash {
			return nil, fmt.Errorf("feature adapter %s: attribute %s shadows a dimension", id, d)
		}
	}
	l, err := adapter.NewLayout(id, dims, names...)
	if err != nil {
		return nil, err
	}
	return &Adapter{Layout: l, idx: idx, types: types, attrs: attrs}, nil
}

// Attributes returns the declared attributes.
func (a *Adapter) Attributes() []Attribute { return a.attrs }

// Index returns the index model the adapter encodes points for.
func (a *Adapter) Index() *index.Model { return a.idx }

// Encode implements adapter.Adapter. Nil attribute values are omitted.
func (a *Adapter) Encode(f *Feature) (adapter.Encoded, error) {
	if f == nil || f.ID == "" {
		return adapter.Encoded{}, fmt.Errorf("feature adapter %s: feature id is required", a.ID())
	}
	dims := a.idx.DimensionFields()
	if len(f.Geometry) != len(dims) {
		return adapter.Encoded{}, fmt.Errorf("feature %s: %d coordinates, index has %d dimensions", f.ID, len(f.Geometry), len(dims))
	}

	e := adapter.Encoded{DataID: []byte(f.ID), Fields: make([]adapter.Field, 0, len(dims)+len(f.Attributes))}
	for i, d := range dims {
		pos, _ := a.Position(d)
		e.Fields = append(e.Fields, adapter.Field{ID: d, Ordinal: pos, Value: index.EncodeCoordinate(f.Geometry[i])})
	}
	for name, v := range f.Attributes {
		if v == nil {
			continue
		}
		t, ok := a.types[name]
		if !ok {
			return adapter.Encoded{}, fmt.Errorf("feature %s: undeclared attribute %s", f.ID, name)
		}
		b, err := EncodeValue(t, v)
		if err != nil {
			return adapter.Encoded{}, fmt.Errorf("feature %s: attribute %s: %w", f.ID, name, err)
		}
		pos, _ := a.Position(name)
		e.Fields = append(e.Fields, adapter.Field{ID: name, Ordinal: pos, Value: b})
	}
	return e, nil
}

// Decode implements adapter.Adapter. Absent attributes are left out of the
// attribute map; the geometry is nil unless every dimension is present.
func (a *Adapter) Decode(e adapter.Encoded) (*Feature, error) {
	f := &Feature{ID: string(e.DataID), Attributes: make(map[model.FieldID]any, len(e.Fields))}
	dims := a.idx.DimensionFields()
	point := make(Point, len(dims))
	found := 0
	for _, fld := range e.Fields {
		if d := dimIndex(dims, fld.ID); d >= 0 {
			c, err := index.DecodeCoordinate(fld.Value)
			if err != nil {
				return nil, fmt.Errorf("feature %s: %s: %w", f.ID, fld.ID, err)
			}
			point[d] = c
			found++
			continue
		}
		t, ok := a.types[fld.ID]
		if !ok {
			return nil, fmt.Errorf("%w: feature %s: undeclared field %s", model.ErrMalformedValue, f.ID, fld.ID)
		}
		v, err := DecodeValue(t, fld.Value)
		if err != nil {
			return nil, fmt.Errorf("feature %s: attribute %s: %w", f.ID, fld.ID, err)
		}
		f.Attributes[fld.ID] = v
	}
	if found == len(dims) {
		f.Geometry = point
	}
	return f, nil
}

// Row builds the stored row of a feature.
func (a *Adapter) Row(f *Feature) (model.Row, error) {
	e, err := a.Encode(f)
	if err != nil {
		return model.Row{}, err
	}
	return a.idx.Row(a.ID(), e)
}

func dimIndex(dims []model.FieldID, id model.FieldID) int {
	for i, d := range dims {
		if d == id {
			return i
		}
	}
	return -1
}
