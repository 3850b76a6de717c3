package adapter

import (
	"github.com/hupe1980/geokv/model"
)

// Model describes an adapter's field ordering.
type Model interface {
	// ID returns the adapter id stored in the column-family component of rows.
	ID() model.AdapterID
	// Fields returns the full field ordering. Callers must not modify it.
	Fields() []model.FieldID
	// Position returns the ordinal of a field.
	Position(id model.FieldID) (int, bool)
	// FieldAt returns the field at an ordinal.
	FieldAt(ordinal int) (model.FieldID, bool)
}

// Field is a single encoded field of an entry.
type Field struct {
	ID      model.FieldID
	Ordinal int
	Value   []byte
}

// Encoded is the adapter-level representation of an entry.
type Encoded struct {
	DataID []byte
	Fields []Field
}

// Field returns the value of the field with the given id.
func (e Encoded) Field(id model.FieldID) ([]byte, bool) {
	for _, f := range e.Fields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return nil, false
}

// Adapter maps entries of type T to and from encoded fields.
// Implementations must be safe for concurrent use.
type Adapter[T any] interface {
	Model
	// Encode converts an entry into its data id and fields.
	Encode(entry T) (Encoded, error)
	// Decode converts fields back into an entry. Fields may be a subset of
	// the full ordering when a projection was applied.
	Decode(e Encoded) (T, error)
}

// Resolver looks up adapters by id.
type Resolver[T any] interface {
	Resolve(id model.AdapterID) (Adapter[T], bool)
}
