package adapter

import (
	"errors"
	"fmt"

	"github.com/hupe1980/geokv/bitmask"
	"github.com/hupe1980/geokv/codec"
	"github.com/hupe1980/geokv/model"
)

// Layout is a concrete, serializable Model.
//
// A Layout doubles as the adapter descriptor shipped to the store when a
// projection is pushed down.
type Layout struct {
	id        model.AdapterID
	fields    []model.FieldID
	positions map[model.FieldID]int
}

var _ Model = (*Layout)(nil)

// NewLayout builds the field ordering of an adapter: dimension fields first,
// then the adapter's own fields. Duplicates keep their first position.
func NewLayout(id model.AdapterID, dimensions []model.FieldID, fields ...model.FieldID) (*Layout, error) {
	if id == "" {
		return nil, errors.New("adapter id must not be empty")
	}
	l := &Layout{id: id, positions: make(map[model.FieldID]int, len(dimensions)+len(fields))}
	for _, f := range append(append([]model.FieldID{}, dimensions...), fields...) {
		if f == "" {
			return nil, fmt.Errorf("adapter %s: empty field id", id)
		}
		if _, dup := l.positions[f]; dup {
			continue
		}
		if len(l.fields) > bitmask.MaxOrdinal {
			return nil, fmt.Errorf("adapter %s: more than %d fields", id, bitmask.MaxOrdinal+1)
		}
		l.positions[f] = len(l.fields)
		l.fields = append(l.fields, f)
	}
	return l, nil
}

// Describe copies any Model into a Layout.
func Describe(m Model) *Layout {
	if l, ok := m.(*Layout); ok {
		return l
	}
	l := &Layout{id: m.ID(), positions: make(map[model.FieldID]int)}
	for i, f := range m.Fields() {
		l.positions[f] = i
		l.fields = append(l.fields, f)
	}
	return l
}

// ID implements Model.
func (l *Layout) ID() model.AdapterID { return l.id }

// Fields implements Model.
func (l *Layout) Fields() []model.FieldID { return l.fields }

// Position implements Model.
func (l *Layout) Position(id model.FieldID) (int, bool) {
	p, ok := l.positions[id]
	return p, ok
}

// FieldAt implements Model.
func (l *Layout) FieldAt(ordinal int) (model.FieldID, bool) {
	if ordinal < 0 || ordinal >= len(l.fields) {
		return "", false
	}
	return l.fields[ordinal], true
}

type layoutJSON struct {
	ID     model.AdapterID `json:"adapter_id"`
	Fields []model.FieldID `json:"field_ids"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (l *Layout) MarshalBinary() ([]byte, error) {
	return codec.Default.Marshal(layoutJSON{ID: l.id, Fields: l.fields})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (l *Layout) UnmarshalBinary(data []byte) error {
	var v layoutJSON
	if err := codec.Default.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode adapter descriptor: %w", err)
	}
	nl, err := NewLayout(v.ID, nil, v.Fields...)
	if err != nil {
		return err
	}
	if len(nl.fields) != len(v.Fields) {
		return fmt.Errorf("adapter %s: descriptor contains duplicate fields", v.ID)
	}
	*l = *nl
	return nil
}
