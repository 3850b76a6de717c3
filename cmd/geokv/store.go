package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/geokv"
	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/blobstore/minio"
	"github.com/hupe1980/geokv/blobstore/s3"
	"github.com/hupe1980/geokv/feature"
	"github.com/hupe1980/geokv/index"
)

// openBlobStore resolves the store target. An empty target uses the local
// data directory; s3://bucket/prefix and minio://host/bucket/prefix select a
// remote store.
func openBlobStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, error) {
	if cfg.Store == "" {
		return blobstore.NewLocalStore(cfg.DataDir)
	}
	u, err := url.Parse(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	switch u.Scheme {
	case "s3":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		store := s3.NewStore(awss3.NewFromConfig(awsCfg), u.Host, strings.TrimPrefix(u.Path, "/"))
		if cfg.DDBTable == "" {
			return store, nil
		}
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DDBTable, cfg.Store), nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("store %q: missing bucket", cfg.Store)
		}
		client, err := miniogo.New(u.Host, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("store %q: unsupported scheme %q", cfg.Store, u.Scheme)
	}
}

// openDB opens the database of the configured store. With create set the
// configured index is used for a new store; otherwise the stored one.
func (a *app) openDB(ctx context.Context, create bool) (*geokv.DB[*feature.Feature], error) {
	blobs, err := openBlobStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	compression, err := a.cfg.compression()
	if err != nil {
		return nil, err
	}
	cacheBytes, err := a.cfg.blockCacheBytes()
	if err != nil {
		return nil, err
	}
	level, err := a.cfg.logLevel()
	if err != nil {
		return nil, err
	}

	opts := []geokv.Option{
		geokv.WithBlobStore(blobs),
		geokv.WithCompression(compression),
		geokv.WithLogger(geokv.NewLogger(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))),
	}
	if cacheBytes > 0 {
		opts = append(opts, geokv.WithBlockCache(cacheBytes))
	}
	if a.metrics != nil {
		opts = append(opts, geokv.WithMetricsCollector(a.metrics))
	}

	var idx *index.Model
	if create {
		idx, err = a.cfg.IndexModel(a.cfg.Index)
		if err != nil {
			return nil, err
		}
	}
	return geokv.Open[*feature.Feature](ctx, idx, opts...)
}

// registerStored registers a string-attribute feature adapter for every
// layout committed with the store.
func registerStored(ctx context.Context, db *geokv.DB[*feature.Feature]) error {
	layouts, err := db.Layouts()
	if err != nil {
		return err
	}
	dims := len(db.Index().Dimensions)
	for _, l := range layouts {
		fields := l.Fields()
		attrs := make([]feature.Attribute, 0, len(fields)-dims)
		for _, f := range fields[dims:] {
			attrs = append(attrs, feature.Attribute{Name: f, Type: feature.String})
		}
		a, err := feature.NewAdapter(l.ID(), db.Index(), attrs...)
		if err != nil {
			return err
		}
		if err := db.RegisterAdapter(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
