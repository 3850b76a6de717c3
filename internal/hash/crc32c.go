package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Bucket maps data to one of n buckets. n must be in [1, 256]; values below
// 2 always yield bucket 0.
func Bucket(data []byte, n int) byte {
	if n <= 1 {
		return 0
	}
	return byte(CRC32C(data) % uint32(n))
}
