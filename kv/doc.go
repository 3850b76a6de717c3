// Package kv implements the sorted key-value store rows are written to and
// scanned from.
//
// Writes go to an in-memory memtable. Flush turns the memtable into an
// immutable segment blob (compressed blocks, a block index and a checksummed
// footer) and commits a new manifest through the CURRENT pointer of the blob
// store. Scans merge the memtable snapshot and all segments in key order; for
// equal keys the newest source wins.
//
// Keys are encoded so that byte order equals (partition, sort key, adapter)
// order. The field bitmask travels with the value, so rewriting an entry with
// a different field set replaces it.
//
// Server-side transforms are registered with RegisterIterator and enabled per
// scan with WithIterator. They run inside the reader, before rows reach the
// caller.
package kv
