package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// FieldID identifies a named attribute of an adapter.
type FieldID string

// AdapterID identifies the adapter a row belongs to. It is stored in the
// column-family component of a row key.
type AdapterID string

// Key is the composite key of a stored row.
type Key struct {
	Partition []byte
	SortKey   []byte
	AdapterID AdapterID
	// Bitmask is the composite bitmask of the field ordinals present in the value.
	Bitmask []byte
}

// Row is a stored key-value pair.
type Row struct {
	Key   Key
	Value []byte
}

// Equal reports whether two keys are byte-identical.
func (k Key) Equal(o Key) bool {
	return k.AdapterID == o.AdapterID &&
		bytes.Equal(k.Partition, o.Partition) &&
		bytes.Equal(k.SortKey, o.SortKey) &&
		bytes.Equal(k.Bitmask, o.Bitmask)
}

// String returns a compact, human readable representation of the key.
func (k Key) String() string {
	return fmt.Sprintf("Key(p=%x s=%x a=%s m=%x)", k.Partition, k.SortKey, k.AdapterID, k.Bitmask)
}

// Clone returns a deep copy of the key.
func (k Key) Clone() Key {
	return Key{
		Partition: bytes.Clone(k.Partition),
		SortKey:   bytes.Clone(k.SortKey),
		AdapterID: k.AdapterID,
		Bitmask:   bytes.Clone(k.Bitmask),
	}
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	return Row{Key: r.Key.Clone(), Value: bytes.Clone(r.Value)}
}

// JoinSortKey appends the data id and its length to the index key.
func JoinSortKey(indexKey, dataID []byte) ([]byte, error) {
	if len(dataID) > math.MaxUint16 {
		return nil, fmt.Errorf("data id too long: %d bytes", len(dataID))
	}
	out := make([]byte, 0, len(indexKey)+len(dataID)+2)
	out = append(out, indexKey...)
	out = append(out, dataID...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(dataID)))
	return out, nil
}

// SplitSortKey splits a sort key built by JoinSortKey. The returned slices
// alias sortKey.
func SplitSortKey(sortKey []byte) (indexKey, dataID []byte, err error) {
	if len(sortKey) < 2 {
		return nil, nil, fmt.Errorf("%w: sort key too short (%d bytes)", ErrMalformedValue, len(sortKey))
	}
	n := int(binary.BigEndian.Uint16(sortKey[len(sortKey)-2:]))
	rest := sortKey[:len(sortKey)-2]
	if n > len(rest) {
		return nil, nil, fmt.Errorf("%w: data id length %d overruns sort key", ErrMalformedValue, n)
	}
	return rest[:len(rest)-n], rest[len(rest)-n:], nil
}
