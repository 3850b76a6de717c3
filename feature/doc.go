// Package feature provides a simple feature type (a point geometry with typed
// attributes) and its adapter.
//
// Dimension fields hold the point coordinates encoded with
// index.EncodeCoordinate. Attributes are encoded per Type:
//
//	String   UTF-8 bytes
//	Float64  8 bytes, big-endian IEEE 754
//	Int64    8 bytes, big-endian two's complement
//	Bool     1 byte (0 or 1)
//	Time     8 bytes, big-endian Unix nanoseconds (UTC)
//	Bytes    raw bytes
package feature
