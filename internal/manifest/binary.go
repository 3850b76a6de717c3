package manifest

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hupe1980/geokv/internal/hash"
)

const binaryMagic = 0x474b564d // "GKVM"

// WriteBinary writes the manifest in binary format.
func (m *Manifest) WriteBinary(w io.Writer) error {
	pb := newPayloadBuffer(make([]byte, 0, 64+len(m.Segments)*96))

	pb.writeUint64(m.ID)
	pb.writeUint64(uint64(m.CreatedAt.UnixNano()))
	pb.writeUint64(m.NextSegmentID)
	pb.writeUint32(uint32(len(m.Segments)))
	for _, s := range m.Segments {
		pb.writeUint64(s.ID)
		pb.writeUint64(s.Rows)
		pb.writeUint64(uint64(s.Size))
		pb.writeBytes([]byte(s.Path))
		pb.writeBytes(s.MinKey)
		pb.writeBytes(s.MaxKey)
	}
	pb.writeUint32(uint32(len(m.Meta)))
	for _, k := range sortedKeys(m.Meta) {
		pb.writeBytes([]byte(k))
		pb.writeBytes(m.Meta[k])
	}
	if pb.err != nil {
		return pb.err
	}

	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(header[4:8], CurrentVersion)
	binary.LittleEndian.PutUint32(header[8:12], hash.CRC32C(pb.buf))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(pb.buf)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pb.buf)
	return err
}

// ReadBinary reads a manifest in binary format.
func ReadBinary(r io.Reader) (*Manifest, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != binaryMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	if hash.CRC32C(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	pb := newPayloadBuffer(payload)
	m := &Manifest{Version: int(version)}
	m.ID = pb.readUint64()
	m.CreatedAt = time.Unix(0, int64(pb.readUint64()))
	m.NextSegmentID = pb.readUint64()

	n := pb.readCount()
	m.Segments = make([]SegmentInfo, 0, n)
	for range n {
		var s SegmentInfo
		s.ID = pb.readUint64()
		s.Rows = pb.readUint64()
		s.Size = int64(pb.readUint64())
		s.Path = string(pb.readBytes())
		s.MinKey = pb.readBytes()
		s.MaxKey = pb.readBytes()
		m.Segments = append(m.Segments, s)
	}

	n = pb.readCount()
	m.Meta = make(map[string][]byte, n)
	for range n {
		k := string(pb.readBytes())
		m.Meta[k] = pb.readBytes()
	}

	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, pb.err)
	}
	if pb.pos != len(pb.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(pb.buf)-pb.pos)
	}
	return m, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	if uint64(len(b)) > math.MaxUint32 {
		p.err = fmt.Errorf("field too long: %d", len(b))
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

// readCount reads an element count, bounded by the remaining payload.
func (p *payloadBuffer) readCount() int {
	n := int(p.readUint32())
	if p.err == nil && n > len(p.buf)-p.pos {
		p.err = fmt.Errorf("count %d exceeds payload", n)
		return 0
	}
	return n
}

func (p *payloadBuffer) readBytes() []byte {
	n := int(p.readUint32())
	if p.err != nil {
		return nil
	}
	if p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return nil
	}
	b := append([]byte(nil), p.buf[p.pos:p.pos+n]...)
	p.pos += n
	return b
}
