// Package model defines the core types shared by the geokv packages.
//
// # Identity Types
//
//   - FieldID: identifier of a named attribute, unique within an adapter
//   - AdapterID: identifier of the adapter (record type) a row belongs to
//
// # Row Types
//
//   - Key: (partition, sort key, adapter id, composite bitmask)
//   - Row: a Key with its length-prefixed field value blob
//
// The sort key of every stored row ends with the data id of the entry it was
// derived from:
//
//	sortKey = indexKey || dataID || uint16be(len(dataID))
//
// Use JoinSortKey and SplitSortKey instead of slicing keys by hand.
package model
