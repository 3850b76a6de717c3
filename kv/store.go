package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/internal/manifest"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/resource"
	"golang.org/x/sync/errgroup"
)

// SegmentPrefix is the blob name prefix of segments.
const SegmentPrefix = "segments/"

// Store is a sorted key-value store on a blob store. It is safe for
// concurrent use.
type Store struct {
	blobs     blobstore.BlobStore
	manifests *manifest.Store
	opts      options
	logger    *slog.Logger

	mu       sync.RWMutex
	man      *manifest.Manifest
	mem      *memtable
	imm      *memtable
	segments []*segmentRef // oldest first
	closed   bool

	// writeMu serializes Flush, Compact and SetMeta.
	writeMu sync.Mutex

	itersMu   sync.RWMutex
	iterators map[string]IteratorFactory
}

// segmentRef counts the users of an open segment. The store holds one
// reference while the segment is live; readers hold one each.
type segmentRef struct {
	info     manifest.SegmentInfo
	seg      *segment
	refs     atomic.Int64
	obsolete atomic.Bool
	blobs    blobstore.BlobStore
	logger   *slog.Logger
}

func (r *segmentRef) acquire() { r.refs.Add(1) }

func (r *segmentRef) release() {
	if r.refs.Add(-1) != 0 {
		return
	}
	if err := r.seg.close(); err != nil {
		r.logger.Warn("close segment", "path", r.info.Path, "error", err)
	}
	if r.obsolete.Load() {
		if err := r.blobs.Delete(context.Background(), r.info.Path); err != nil {
			r.logger.Warn("delete obsolete segment", "path", r.info.Path, "error", err)
		}
	}
}

// Open opens the store kept in blobs, or starts an empty one.
func Open(ctx context.Context, blobs blobstore.BlobStore, optFns ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("kv: blob store is required")
	}
	opts := applyOptions(optFns)
	s := &Store{
		blobs:     blobs,
		manifests: manifest.NewStore(blobs),
		opts:      opts,
		logger:    opts.logger,
		mem:       newMemtable(),
		iterators: make(map[string]IteratorFactory),
	}

	m, err := s.manifests.Load(ctx)
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		s.man = manifest.New()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("kv: load manifest: %w", err)
	}
	s.man = m

	refs := make([]*segmentRef, len(m.Segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.openConcurrency)
	for i, info := range m.Segments {
		g.Go(func() error {
			ref, err := s.openRef(gctx, info)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, ref := range refs {
			if ref != nil {
				ref.release()
			}
		}
		return nil, fmt.Errorf("kv: open segments: %w", err)
	}
	s.segments = refs

	s.logger.Info("kv store opened", "manifest", m.ID, "segments", len(refs))
	return s, nil
}

func (s *Store) openRef(ctx context.Context, info manifest.SegmentInfo) (*segmentRef, error) {
	blob, err := s.blobs.Open(ctx, info.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Path, err)
	}
	seg, err := openSegment(ctx, info.Path, blob, s.opts.rc)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	ref := &segmentRef{info: info, seg: seg, blobs: s.blobs, logger: s.logger}
	ref.refs.Store(1)
	return ref, nil
}

// Put stores a row. A later Put of the same key replaces it. Rows are
// durable after Flush.
func (s *Store) Put(row model.Row) error {
	if row.Key.AdapterID == "" {
		return fmt.Errorf("%w: empty adapter id", ErrInvalidRow)
	}
	if len(row.Key.SortKey) == 0 {
		return fmt.Errorf("%w: empty sort key", ErrInvalidRow)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.mem.put(newEntry(row))
	return nil
}

// MemtableSize returns the unflushed bytes.
func (s *Store) MemtableSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem.size()
}

// Flush writes the memtable to a new segment and commits it.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mem.len() == 0 {
		s.mu.Unlock()
		return nil
	}
	imm := s.mem
	s.imm = imm
	s.mem = newMemtable()
	next := s.man.Clone()
	s.mu.Unlock()

	start := time.Now()
	ref, err := s.writeSegment(ctx, next, newSliceSource(imm.snapshot(), All()))
	if err == nil {
		next.Segments = append(next.Segments, ref.info)
		if err = s.manifests.Save(ctx, next); err != nil {
			ref.obsolete.Store(true)
			ref.release()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.imm = nil
	if err != nil {
		// Keep the rows: writes made during the flush are newer.
		for _, e := range imm.snapshot() {
			s.mem.putIfAbsent(e)
		}
		return fmt.Errorf("kv: flush: %w", err)
	}
	s.man = next
	s.segments = append(s.segments, ref)

	s.logger.Info("memtable flushed",
		"segment", ref.info.Path,
		"rows", ref.info.Rows,
		"bytes", ref.info.Size,
		"duration", time.Since(start),
	)
	return nil
}

// writeSegment writes the entries of src to a new segment blob and opens
// it. It allocates the segment id from m.
func (s *Store) writeSegment(ctx context.Context, m *manifest.Manifest, src source) (*segmentRef, error) {
	id := m.NextSegmentID
	m.NextSegmentID++
	name := fmt.Sprintf("%s%06d-%s.seg", SegmentPrefix, id, uuid.NewString())

	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	sw := newSegmentWriter(resource.NewWriter(ctx, w, s.opts.rc), s.opts.compression, s.opts.blockSize)
	for src.next() {
		if err = sw.add(src.entry()); err != nil {
			break
		}
	}
	if err == nil {
		err = src.err()
	}
	var meta SegmentMeta
	if err == nil {
		meta, err = sw.finish()
	}
	if err == nil {
		err = w.Sync()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.blobs.Delete(ctx, name)
		return nil, err
	}

	info := manifest.SegmentInfo{
		ID:     id,
		Path:   name,
		Rows:   meta.Rows,
		Size:   meta.Size,
		MinKey: bytes.Clone(meta.MinKey),
		MaxKey: bytes.Clone(meta.MaxKey),
	}
	ref, err := s.openRef(ctx, info)
	if err != nil {
		_ = s.blobs.Delete(ctx, name)
		return nil, err
	}
	return ref, nil
}

// Compact merges all segments into one. Superseded versions of a key are
// dropped. Old segment blobs are deleted once no reader uses them.
func (s *Store) Compact(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	old := append([]*segmentRef(nil), s.segments...)
	next := s.man.Clone()
	for _, ref := range old {
		ref.acquire()
	}
	s.mu.RUnlock()
	defer func() {
		for _, ref := range old {
			ref.release()
		}
	}()

	if len(old) < 2 {
		return nil
	}

	sources := make([]source, 0, len(old))
	for i := len(old) - 1; i >= 0; i-- {
		sources = append(sources, newSegmentSource(ctx, old[i].seg, All()))
	}
	merged := newMergeIterator(sources)

	start := time.Now()
	ref, err := s.writeSegment(ctx, next, merged)
	if err != nil {
		return fmt.Errorf("kv: compact: %w", err)
	}
	next.Segments = []manifest.SegmentInfo{ref.info}
	if err := s.manifests.Save(ctx, next); err != nil {
		ref.obsolete.Store(true)
		ref.release()
		return fmt.Errorf("kv: compact: %w", err)
	}

	s.mu.Lock()
	s.man = next
	s.segments = []*segmentRef{ref}
	s.mu.Unlock()

	for _, r := range old {
		r.obsolete.Store(true)
		r.release() // store reference
	}

	s.logger.Info("segments compacted",
		"inputs", len(old),
		"segment", ref.info.Path,
		"rows", ref.info.Rows,
		"duration", time.Since(start),
	)
	return nil
}

// Scan returns a reader over the rows in rng. The reader must be closed.
func (s *Store) Scan(ctx context.Context, rng Range, optFns ...ScanOption) (*Reader, error) {
	var so scanOptions
	for _, fn := range optFns {
		fn(&so)
	}
	transforms, err := s.transforms(so.iterators)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	sources := []source{newSliceSource(s.mem.snapshot(), rng)}
	if s.imm != nil {
		sources = append(sources, newSliceSource(s.imm.snapshot(), rng))
	}
	var refs []*segmentRef
	for i := len(s.segments) - 1; i >= 0; i-- {
		ref := s.segments[i]
		if !rng.Overlaps(ref.info.MinKey, ref.info.MaxKey) {
			continue
		}
		ref.acquire()
		refs = append(refs, ref)
		sources = append(sources, newSegmentSource(ctx, ref.seg, rng))
	}
	s.mu.RUnlock()

	return &Reader{
		it:         newMergeIterator(sources),
		adapters:   so.adapters,
		transforms: transforms,
		refs:       refs,
	}, nil
}

// SegmentInfo describes a live segment.
type SegmentInfo = manifest.SegmentInfo

// Segments returns the live segments, oldest first.
func (s *Store) Segments() []SegmentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SegmentInfo, len(s.segments))
	for i, ref := range s.segments {
		out[i] = ref.info.Clone()
	}
	return out
}

// Version returns the id of the committed manifest, 0 before the first
// commit.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.man.ID
}

// Meta returns a metadata value committed with the manifest.
func (s *Store) Meta(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.man.Meta[key]
	return bytes.Clone(v), ok
}

// MetaKeys returns the sorted metadata keys starting with prefix.
func (s *Store) MetaKeys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.man.Meta {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// SetMeta commits a metadata value. A nil value removes the key.
func (s *Store) SetMeta(ctx context.Context, key string, value []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	next := s.man.Clone()
	s.mu.RUnlock()

	if value == nil {
		delete(next.Meta, key)
	} else {
		next.Meta[key] = bytes.Clone(value)
	}
	if err := s.manifests.Save(ctx, next); err != nil {
		return fmt.Errorf("kv: commit meta %s: %w", key, err)
	}

	s.mu.Lock()
	s.man = next
	s.mu.Unlock()
	return nil
}

// Close closes the store. Unflushed rows are discarded; open readers stay
// valid until they are closed.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ref := range s.segments {
		ref.release()
	}
	s.segments = nil
	return nil
}
