// Package conv provides bounds-checked integer conversions for lengths and
// offsets that come from untrusted bytes (segment footers, block indexes,
// value frames).
package conv
