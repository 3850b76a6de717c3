// Package scan implements the row scan query: a pull-based pipeline that
// turns raw sorted rows from a Reader into decoded entries.
//
// For every row pulled from the reader the query resolves the row's adapter,
// applies the optional client-side projection, the optional filter, decodes
// the entry, applies optional subsampling and finally invokes the callback
// before returning the entry to the caller.
//
//	q, err := scan.New(reader, registry, nil, scan.WithLimit(100))
//	if err != nil { ... }
//	defer q.Close()
//	for entry, err := range q.All() {
//		...
//	}
//
// A query runs on the caller's goroutine and spawns none of its own. Close is
// the only cancellation mechanism: it may be called while Next is blocked in
// the reader, and with WithCancel it cancels the context the reader blocks
// on. Once closed, Next fails with an error wrapping model.ErrIllegalState.
package scan
