package kv

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/geokv/internal/hash"
)

// SegmentMeta summarizes a written segment.
type SegmentMeta struct {
	Rows   uint64
	Size   int64
	MinKey []byte
	MaxKey []byte
}

// segmentWriter streams ascending entries into the segment format.
type segmentWriter struct {
	w           *bufio.Writer
	compression Compression
	blockSize   int

	block   []byte
	rows    uint32
	first   []byte
	last    []byte
	handles []blockHandle
	offset  uint64
	total   uint64
	minKey  []byte
}

func newSegmentWriter(w io.Writer, c Compression, blockSize int) *segmentWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &segmentWriter{
		w:           bufio.NewWriterSize(w, 64*1024),
		compression: c,
		blockSize:   blockSize,
	}
}

func (s *segmentWriter) add(e entry) error {
	if s.last != nil && bytes.Compare(e.key, s.last) <= 0 {
		return fmt.Errorf("kv: segment keys out of order: %x after %x", e.key, s.last)
	}
	if s.rows == 0 {
		s.first = e.key
	}
	if s.minKey == nil {
		s.minKey = e.key
	}
	s.block = appendEntry(s.block, e)
	s.rows++
	s.total++
	s.last = e.key
	if len(s.block) >= s.blockSize {
		return s.flushBlock()
	}
	return nil
}

func (s *segmentWriter) flushBlock() error {
	if s.rows == 0 {
		return nil
	}
	stored, err := compressBlock(s.block, s.compression)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(stored); err != nil {
		return err
	}
	s.handles = append(s.handles, blockHandle{
		offset:   s.offset,
		length:   uint32(len(stored)),
		crc:      hash.CRC32C(stored),
		rows:     s.rows,
		firstKey: s.first,
		lastKey:  s.last,
	})
	s.offset += uint64(len(stored))
	s.block = s.block[:0]
	s.rows = 0
	return nil
}

// finish writes the remaining block, the index and the footer.
func (s *segmentWriter) finish() (SegmentMeta, error) {
	if err := s.flushBlock(); err != nil {
		return SegmentMeta{}, err
	}
	index := encodeIndex(s.handles)
	f := footer{
		indexOffset: s.offset,
		indexLength: uint32(len(index)),
		indexCRC:    hash.CRC32C(index),
		rows:        s.total,
		compression: s.compression,
	}
	if _, err := s.w.Write(index); err != nil {
		return SegmentMeta{}, err
	}
	if _, err := s.w.Write(f.encode()); err != nil {
		return SegmentMeta{}, err
	}
	if err := s.w.Flush(); err != nil {
		return SegmentMeta{}, err
	}
	return SegmentMeta{
		Rows:   s.total,
		Size:   int64(s.offset) + int64(len(index)) + footerSize,
		MinKey: s.minKey,
		MaxKey: s.last,
	}, nil
}
