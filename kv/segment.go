package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/internal/hash"
	"github.com/hupe1980/geokv/resource"
)

// segment is an open, immutable segment blob.
type segment struct {
	name    string
	blob    blobstore.Blob
	footer  footer
	handles []blockHandle
	rc      *resource.Controller
}

func openSegment(ctx context.Context, name string, blob blobstore.Blob, rc *resource.Controller) (*segment, error) {
	size := blob.Size()
	if size < footerSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidSegment, name, size)
	}
	buf := make([]byte, footerSize)
	if err := readFull(ctx, blob, buf, size-footerSize, rc); err != nil {
		return nil, fmt.Errorf("read footer of %s: %w", name, err)
	}
	f, err := decodeFooter(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.indexOffset+uint64(f.indexLength) != uint64(size-footerSize) {
		return nil, fmt.Errorf("%w: %s index does not end at footer", ErrInvalidSegment, name)
	}

	index := make([]byte, f.indexLength)
	if err := readFull(ctx, blob, index, int64(f.indexOffset), rc); err != nil {
		return nil, fmt.Errorf("read index of %s: %w", name, err)
	}
	if hash.CRC32C(index) != f.indexCRC {
		return nil, fmt.Errorf("%w: block index of %s", ErrChecksumMismatch, name)
	}
	handles, err := decodeIndex(index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &segment{name: name, blob: blob, footer: f, handles: handles, rc: rc}, nil
}

func readFull(ctx context.Context, b blobstore.Blob, p []byte, off int64, rc *resource.Controller) error {
	release, err := rc.AcquireRead(ctx, len(p))
	if err != nil {
		return err
	}
	defer release()

	n, err := b.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (s *segment) rows() uint64 { return s.footer.rows }

func (s *segment) readBlock(ctx context.Context, i int) ([]entry, error) {
	h := s.handles[i]
	stored := make([]byte, h.length)
	if err := readFull(ctx, s.blob, stored, int64(h.offset), s.rc); err != nil {
		return nil, fmt.Errorf("read block %d of %s: %w", i, s.name, err)
	}
	if hash.CRC32C(stored) != h.crc {
		return nil, fmt.Errorf("%w: block %d of %s", ErrChecksumMismatch, i, s.name)
	}
	raw, err := decompressBlock(stored, s.footer.compression)
	if err != nil {
		return nil, fmt.Errorf("block %d of %s: %w", i, s.name, err)
	}
	entries, err := decodeBlockEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("block %d of %s: %w", i, s.name, err)
	}
	if uint32(len(entries)) != h.rows {
		return nil, fmt.Errorf("%w: block %d of %s has %d rows, index says %d", errCorruptBlock, i, s.name, len(entries), h.rows)
	}
	return entries, nil
}

func (s *segment) close() error { return s.blob.Close() }

// segmentSource iterates the entries of a segment within a range, loading
// one block at a time.
type segmentSource struct {
	ctx   context.Context
	seg   *segment
	rng   Range
	block int
	cur   []entry
	pos   int
	e     error
	done  bool
}

func newSegmentSource(ctx context.Context, seg *segment, rng Range) *segmentSource {
	// First block whose last key is >= rng.Start.
	first := 0
	if rng.Start != nil {
		first = sort.Search(len(seg.handles), func(i int) bool {
			return bytes.Compare(seg.handles[i].lastKey, rng.Start) >= 0
		})
	}
	return &segmentSource{ctx: ctx, seg: seg, rng: rng, block: first - 1}
}

func (s *segmentSource) next() bool {
	if s.done {
		return false
	}
	for {
		s.pos++
		if s.pos < len(s.cur) {
			e := s.cur[s.pos]
			if s.rng.Start != nil && bytes.Compare(e.key, s.rng.Start) < 0 {
				continue
			}
			if !s.rng.Contains(e.key) {
				s.done = true
				return false
			}
			return true
		}
		s.block++
		if s.block >= len(s.seg.handles) || s.rng.Before(s.seg.handles[s.block].firstKey) {
			s.done = true
			return false
		}
		entries, err := s.seg.readBlock(s.ctx, s.block)
		if err != nil {
			s.e = err
			s.done = true
			return false
		}
		s.cur = entries
		s.pos = -1
	}
}

func (s *segmentSource) entry() entry { return s.cur[s.pos] }

func (s *segmentSource) err() error { return s.e }

func (s *segmentSource) close() error { return nil }
