// Package cache provides LRU caching for immutable blob blocks.
//
// LRU is a single-mutex cache. Sharded spreads keys over 64 LRUs to reduce
// lock contention under parallel scans. Both charge cached bytes against an
// optional resource.Controller and refuse to cache when it is exhausted.
package cache
