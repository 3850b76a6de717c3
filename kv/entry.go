package kv

import (
	"github.com/hupe1980/geokv/model"
)

// entry is a stored key-value pair. Entries are immutable once created.
type entry struct {
	key   []byte
	mask  []byte
	value []byte
}

func newEntry(row model.Row) entry {
	return entry{
		key:   EncodeKey(row.Key),
		mask:  append([]byte(nil), row.Key.Bitmask...),
		value: append([]byte(nil), row.Value...),
	}
}

func (e entry) size() int64 {
	return int64(len(e.key) + len(e.mask) + len(e.value))
}

func (e entry) row() (model.Row, error) {
	k, err := DecodeKey(e.key)
	if err != nil {
		return model.Row{}, err
	}
	k.Bitmask = e.mask
	return model.Row{Key: k, Value: e.value}, nil
}
