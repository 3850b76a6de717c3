package cache

// Key identifies a block of a blob.
type Key struct {
	// Blob is the blob name.
	Blob string
	// Block is the block index within the blob.
	Block int64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block.
	Get(key Key) ([]byte, bool)
	// Set caches a block. The cache retains b.
	Set(key Key, b []byte)
	// Invalidate removes all blocks of a blob.
	Invalidate(blob string)
	// Stats returns hit and miss counts.
	Stats() (hits, misses int64)
	// Size returns the cached bytes.
	Size() int64
}
