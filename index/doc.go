// Package index implements the index model: how the dimension fields of an
// entry map to a sortable index key.
//
// Keys are Z-order (Morton) codes: each dimension is quantized to Bits bits
// and the bits are interleaved from most to least significant. Points close
// in space share long key prefixes, which is what resolution reduction
// (subsampling) relies on.
package index
