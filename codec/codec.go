// Package codec encodes the descriptors geokv commits with a store (index
// models, adapter layouts).
package codec

// Codec encodes and decodes descriptors.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec of stored descriptors. Changing it breaks stores
// written by older versions.
var Default Codec = GoJSON{}
