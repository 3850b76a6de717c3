package cache

import (
	"hash/maphash"

	"github.com/hupe1980/geokv/resource"
)

const numShards = 64

// Sharded is a BlockCache that spreads keys over independent LRUs.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

var _ BlockCache = (*Sharded)(nil)

// NewSharded creates a sharded cache. The capacity is divided evenly across
// the shards.
func NewSharded(capacity int64, rc *resource.Controller) *Sharded {
	s := &Sharded{seed: maphash.MakeSeed()}
	per := max(capacity/numShards, 1)
	for i := range s.shards {
		s.shards[i] = NewLRU(per, rc)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(key.Blob)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(key.Block >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return s.shards[h.Sum64()%numShards]
}

// Get implements BlockCache.
func (s *Sharded) Get(key Key) ([]byte, bool) { return s.shard(key).Get(key) }

// Set implements BlockCache.
func (s *Sharded) Set(key Key, b []byte) { s.shard(key).Set(key, b) }

// Invalidate implements BlockCache. It visits every shard.
func (s *Sharded) Invalidate(blob string) {
	for _, sh := range s.shards {
		sh.Invalidate(blob)
	}
}

// Stats implements BlockCache.
func (s *Sharded) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size implements BlockCache.
func (s *Sharded) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}

// Len returns the number of cached blocks.
func (s *Sharded) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}
