// Package hash provides the CRC32-Castagnoli checksum used for segment
// integrity checks and partition assignment.
//
// CRC32C is hardware accelerated on amd64 (SSE4.2) and arm64.
package hash
