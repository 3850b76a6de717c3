// Package adapter defines how a record type maps to and from a fixed field
// ordering and byte encoding.
//
// An adapter's field ordering is stable for the lifetime of the stored data:
// the ordinal of a field is its position in Fields(), and composite bitmasks
// refer to fields by ordinal. Layout builds the conventional ordering with the
// index dimension fields first, followed by the adapter's own fields.
package adapter
