// Package blobstore provides the storage abstraction for immutable segment
// blobs and manifests.
//
// BlobStore is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and ephemeral stores
//   - LocalStore: local filesystem, mmap reads and atomic rename writes
//   - CachingStore: block cache in front of any other store
//   - s3.Store / s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible services
//
// Blob names use forward slashes (for example "segments/000001.seg").
package blobstore
