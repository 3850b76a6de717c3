// Package geokv indexes multi-dimensional records into a sorted key-value
// store and scans them back as decoded entries.
//
// Entries of type T are mapped to rows by adapters. The index model turns
// the dimension fields of an entry into a Z-order sort key; the remaining
// fields are stored as a length-prefixed value blob whose composite bitmask
// records which fields are present.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := index.Spatial("spatial", 16)
//	db, _ := geokv.Open[*feature.Feature](ctx, idx, geokv.WithLocal("./data"))
//	defer db.Close()
//
//	roads, _ := feature.NewAdapter("roads", idx,
//	    feature.Attribute{Name: "name", Type: feature.String},
//	    feature.Attribute{Name: "lanes", Type: feature.Int64},
//	)
//	_ = db.RegisterAdapter(ctx, roads)
//	_ = db.Write(ctx, "roads", &feature.Feature{ID: "a1", Geometry: feature.Point{13.4, 52.5}})
//	_ = db.Flush(ctx) // durable after this
//
// # Queries
//
// A query scans a key range, filters raw rows, optionally projects them to a
// subset of fields, decodes them and optionally subsamples them by
// resolution:
//
//	features, _ := db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
//	    AdapterID: "roads",
//	    Fields:    []model.FieldID{"name"},
//	    PushDown:  true, // project inside the store scan
//	    Range:     &geokv.Box{Min: []float64{13, 52}, Max: []float64{14, 53}},
//	    Limit:     100,
//	})
//
// Rows of other adapters pass through a projection unchanged unless
// DropMismatched is set. Failing rows abort the scan with a
// *model.PartialReadError unless SkipErrors is set.
//
// # Storage
//
// Data lives in a blobstore.BlobStore: local directory (mmap reads), memory,
// S3 (optionally with DynamoDB commits) or MinIO. WithBlockCache puts an LRU
// block cache in front of remote stores.
//
// # Durability Model
//
// geokv uses commit-oriented durability:
//
//	db.Write(ctx, "roads", f) // buffered in memory
//	db.Flush(ctx)             // durable after this
package geokv
