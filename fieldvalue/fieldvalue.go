// Package fieldvalue implements the field value blob: an ordered sequence of
// field payloads, each framed by a 4-byte unsigned big-endian length.
//
// The blob carries no type information and no field count. The number of
// frames is always supplied by the paired composite bitmask.
package fieldvalue

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/geokv/internal/conv"
	"github.com/hupe1980/geokv/model"
)

// PrefixSize is the size of a frame's length prefix.
const PrefixSize = 4

// Serialize frames fields in order.
func Serialize(fields [][]byte) ([]byte, error) {
	return Append(make([]byte, 0, Size(fields)), fields...)
}

// Append appends the frames of fields to dst.
func Append(dst []byte, fields ...[]byte) ([]byte, error) {
	for i, f := range fields {
		n, err := conv.IntToUint32(len(f))
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		dst = binary.BigEndian.AppendUint32(dst, n)
		dst = append(dst, f...)
	}
	return dst, nil
}

// Size returns the serialized size of fields.
func Size(fields [][]byte) int {
	n := PrefixSize * len(fields)
	for _, f := range fields {
		n += len(f)
	}
	return n
}

// Deserialize splits b into exactly count frames. The returned slices alias b
// and must be treated as read-only.
func Deserialize(b []byte, count int) ([][]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative field count %d", count)
	}
	out := make([][]byte, 0, count)
	rest := b
	for i := range count {
		f, tail, err := next(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d of %d: %w", model.ErrMalformedValue, i, count, err)
		}
		out = append(out, f)
		rest = tail
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d frames", model.ErrMalformedValue, len(rest), count)
	}
	return out, nil
}

// Count returns the number of complete frames in b.
func Count(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		_, tail, err := next(b)
		if err != nil {
			return 0, fmt.Errorf("%w: frame %d: %w", model.ErrMalformedValue, n, err)
		}
		b = tail
		n++
	}
	return n, nil
}

// Frame returns the i-th frame of b without decoding the frames after it.
func Frame(b []byte, i int) ([]byte, error) {
	for j := 0; ; j++ {
		f, tail, err := next(b)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", model.ErrMalformedValue, j, err)
		}
		if j == i {
			return f, nil
		}
		b = tail
	}
}

func next(b []byte) (frame, tail []byte, err error) {
	if len(b) < PrefixSize {
		return nil, nil, fmt.Errorf("short length prefix (%d bytes)", len(b))
	}
	n := uint64(binary.BigEndian.Uint32(b))
	b = b[PrefixSize:]
	if n > uint64(len(b)) {
		return nil, nil, fmt.Errorf("declared length %d overruns %d remaining bytes", n, len(b))
	}
	return b[:n:n], b[n:], nil
}
