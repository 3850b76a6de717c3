package resource

import (
	"context"
	"io"
)

// NewWriter returns a writer that admits writes to w at the write bandwidth
// of rc and accounts them in WrittenBytes. With a nil rc, w is returned as is.
func NewWriter(ctx context.Context, w io.Writer, rc *Controller) io.Writer {
	if rc == nil {
		return w
	}
	return &throttledWriter{ctx: ctx, w: w, rc: rc}
}

type throttledWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.rc.WaitWrite(t.ctx, len(p)); err != nil {
		return 0, err
	}
	n, err := t.w.Write(p)
	t.rc.writeBytes.Add(int64(n))
	return n, err
}
