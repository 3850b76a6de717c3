// Package manifest implements atomic manifest persistence for the kv store.
//
// A manifest lists the live segments of a store and the metadata the owner
// attached to it (for example the index model descriptor).
//
// # Binary Format
//
//	Header (16 bytes, little endian):
//	  Magic    (4 bytes) - 0x474b564d ("GKVM")
//	  Version  (4 bytes) - format version (currently 1)
//	  Checksum (4 bytes) - CRC32C of payload
//	  Length   (4 bytes) - payload length in bytes
//
//	Payload:
//	  ID            (8 bytes) - manifest version
//	  CreatedAt     (8 bytes) - unix nanoseconds
//	  NextSegmentID (8 bytes)
//	  NumSegments   (4 bytes)
//	  Segments[]    ID (8) Rows (8) Size (8) Path MinKey MaxKey
//	  NumMeta       (4 bytes)
//	  Meta[]        Key Value, sorted by key
//
// Strings and byte slices are prefixed with a 4-byte length.
//
// # Atomic Protocol
//
// Save writes MANIFEST-NNNNNN.bin and then points CURRENT at it. Local blob
// stores rename atomically; s3.DDBCommitStore turns the CURRENT update into
// a conditional DynamoDB write, so a concurrent writer fails instead of
// overwriting.
package manifest
