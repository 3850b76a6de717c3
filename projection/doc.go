// Package projection rewrites stored rows to a requested subset of fields.
//
// A Transform is configured once per scan with the target adapter, the
// requested field ids and the index dimension fields (which are always
// retained). It is then applied to many rows. Each row comes out in one of
// three ways:
//
//   - Unchanged: the row belongs to another adapter, or every field it holds
//     is retained. Key and value are returned byte-identical.
//   - Dropped: none of the row's fields is retained.
//   - Reencoded: a fresh bitmask and value holding only the retained fields,
//     in their original relative order.
//
// ApplyRaw works on the (bitmask, value) pair alone and has no dependency on
// any storage engine, so the same Transform runs inside a store's scan path
// (see EncodeOptions / FromOptions) or on the client.
package projection
