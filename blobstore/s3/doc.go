// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "tables/")
//
//	db, err := geokv.Open[feature.Feature](ctx, geokv.WithBlobStore(store))
//
// # Features
//
//   - Range reads for partial block fetches
//   - Multipart uploads for large segments
//   - CRC32C checksums on manifest puts
//   - DynamoDB-backed commits for concurrent writers (DDBCommitStore)
package s3
