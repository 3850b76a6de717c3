// Package bitmask implements the composite bitmask: a compact byte encoding of
// the set of field ordinals present in a stored value.
//
// Byte i holds ordinals 8i through 8i+7, least significant bit first, and
// trailing zero bytes are trimmed. The layout matches java.util.BitSet's
// toByteArray, so bitmasks written by other implementations decode unchanged.
//
// Encode and Decode are pure and safe for concurrent use.
package bitmask
