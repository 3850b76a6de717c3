package kv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/geokv/internal/conv"
)

// Segment layout:
//
//	Blocks...   compressed data blocks
//	Index       block index (see encodeIndex)
//	Footer      fixed size, little endian:
//	  IndexOffset (8) IndexLength (4) IndexCRC (4) Rows (8)
//	  Compression (1) Reserved (3) Version (4) Magic (4)
//
// A block holds entries as uvarint-prefixed key, mask and value.
const (
	segmentMagic   = 0x474b5653 // "GKVS"
	segmentVersion = 1
	footerSize     = 8 + 4 + 4 + 8 + 1 + 3 + 4 + 4

	// DefaultBlockSize is the target uncompressed block size.
	DefaultBlockSize = 32 * 1024
)

var (
	// ErrInvalidSegment is returned for blobs that are not readable segments.
	ErrInvalidSegment = errors.New("kv: invalid segment")
	// ErrChecksumMismatch is returned when stored data fails verification.
	ErrChecksumMismatch = errors.New("kv: checksum mismatch")
)

type footer struct {
	indexOffset uint64
	indexLength uint32
	indexCRC    uint32
	rows        uint64
	compression Compression
}

func (f footer) encode() []byte {
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(buf[0:], f.indexOffset)
	binary.LittleEndian.PutUint32(buf[8:], f.indexLength)
	binary.LittleEndian.PutUint32(buf[12:], f.indexCRC)
	binary.LittleEndian.PutUint64(buf[16:], f.rows)
	buf[24] = byte(f.compression)
	binary.LittleEndian.PutUint32(buf[28:], segmentVersion)
	binary.LittleEndian.PutUint32(buf[32:], segmentMagic)
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerSize {
		return footer{}, fmt.Errorf("%w: footer of %d bytes", ErrInvalidSegment, len(buf))
	}
	if m := binary.LittleEndian.Uint32(buf[32:]); m != segmentMagic {
		return footer{}, fmt.Errorf("%w: magic %x", ErrInvalidSegment, m)
	}
	if v := binary.LittleEndian.Uint32(buf[28:]); v != segmentVersion {
		return footer{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidSegment, v)
	}
	f := footer{
		indexOffset: binary.LittleEndian.Uint64(buf[0:]),
		indexLength: binary.LittleEndian.Uint32(buf[8:]),
		indexCRC:    binary.LittleEndian.Uint32(buf[12:]),
		rows:        binary.LittleEndian.Uint64(buf[16:]),
		compression: Compression(buf[24]),
	}
	if f.compression > CompressionZSTD {
		return footer{}, fmt.Errorf("%w: unknown compression %d", ErrInvalidSegment, f.compression)
	}
	return f, nil
}

// blockHandle locates a block and bounds its keys.
type blockHandle struct {
	offset   uint64
	length   uint32
	crc      uint32
	rows     uint32
	firstKey []byte
	lastKey  []byte
}

func appendBytes(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func readBytes(b []byte) (v, rest []byte, err error) {
	u, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	n, err := conv.Uint64ToInt(u)
	if err != nil || n > len(b)-k {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return b[k : k+n], b[k+n:], nil
}

func encodeIndex(handles []blockHandle) []byte {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(len(handles)))
	for _, h := range handles {
		buf = binary.LittleEndian.AppendUint64(buf, h.offset)
		buf = binary.LittleEndian.AppendUint32(buf, h.length)
		buf = binary.LittleEndian.AppendUint32(buf, h.crc)
		buf = binary.LittleEndian.AppendUint32(buf, h.rows)
		buf = appendBytes(buf, h.firstKey)
		buf = appendBytes(buf, h.lastKey)
	}
	return buf
}

func decodeIndex(b []byte) ([]blockHandle, error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, fmt.Errorf("%w: block index header", ErrInvalidSegment)
	}
	b = b[k:]
	if n > uint64(len(b)) {
		return nil, fmt.Errorf("%w: %d blocks in %d index bytes", ErrInvalidSegment, n, len(b))
	}
	handles := make([]blockHandle, 0, n)
	for range n {
		if len(b) < 20 {
			return nil, fmt.Errorf("%w: truncated block index", ErrInvalidSegment)
		}
		h := blockHandle{
			offset: binary.LittleEndian.Uint64(b[0:]),
			length: binary.LittleEndian.Uint32(b[8:]),
			crc:    binary.LittleEndian.Uint32(b[12:]),
			rows:   binary.LittleEndian.Uint32(b[16:]),
		}
		var err error
		if h.firstKey, b, err = readBytes(b[20:]); err != nil {
			return nil, fmt.Errorf("%w: block index: %v", ErrInvalidSegment, err)
		}
		if h.lastKey, b, err = readBytes(b); err != nil {
			return nil, fmt.Errorf("%w: block index: %v", ErrInvalidSegment, err)
		}
		handles = append(handles, h)
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing index bytes", ErrInvalidSegment, len(b))
	}
	return handles, nil
}

func appendEntry(dst []byte, e entry) []byte {
	dst = appendBytes(dst, e.key)
	dst = appendBytes(dst, e.mask)
	return appendBytes(dst, e.value)
}

func decodeBlockEntries(b []byte) ([]entry, error) {
	var out []entry
	for len(b) > 0 {
		var e entry
		var err error
		if e.key, b, err = readBytes(b); err != nil {
			return nil, fmt.Errorf("%w: entry key: %v", errCorruptBlock, err)
		}
		if e.mask, b, err = readBytes(b); err != nil {
			return nil, fmt.Errorf("%w: entry mask: %v", errCorruptBlock, err)
		}
		if e.value, b, err = readBytes(b); err != nil {
			return nil, fmt.Errorf("%w: entry value: %v", errCorruptBlock, err)
		}
		out = append(out, e)
	}
	return out, nil
}
