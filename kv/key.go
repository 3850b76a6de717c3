package kv

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/geokv/model"
)

// Component framing. 0x00 inside a component is escaped as 0x00 0xFF, and
// every component ends with 0x00 0x01, so shorter components sort first.
const (
	escByte  = 0x00
	escNext  = 0xFF
	termNext = 0x01
)

// EncodeKey returns the order-preserving encoding of the identity of k:
// partition, sort key and adapter id. The bitmask is not part of the key.
func EncodeKey(k model.Key) []byte {
	out := make([]byte, 0, len(k.Partition)+len(k.SortKey)+len(k.AdapterID)+8)
	out = appendComponent(out, k.Partition)
	out = appendComponent(out, k.SortKey)
	out = appendComponent(out, []byte(k.AdapterID))
	return out
}

// DecodeKey reverses EncodeKey. The returned key has no bitmask.
func DecodeKey(b []byte) (model.Key, error) {
	var parts [3][]byte
	rest := b
	for i := range parts {
		c, n, err := readComponent(rest)
		if err != nil {
			return model.Key{}, err
		}
		parts[i] = c
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return model.Key{}, fmt.Errorf("%w: %d trailing key bytes", model.ErrMalformedValue, len(rest))
	}
	return model.Key{
		Partition: parts[0],
		SortKey:   parts[1],
		AdapterID: model.AdapterID(parts[2]),
	}, nil
}

func appendEscaped(dst, src []byte) []byte {
	for _, c := range src {
		dst = append(dst, c)
		if c == escByte {
			dst = append(dst, escNext)
		}
	}
	return dst
}

func appendComponent(dst, src []byte) []byte {
	return append(appendEscaped(dst, src), escByte, termNext)
}

func readComponent(b []byte) (component []byte, n int, err error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != escByte {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			break
		}
		switch b[i+1] {
		case escNext:
			out = append(out, escByte)
			i++
		case termNext:
			return out, i + 2, nil
		default:
			return nil, 0, fmt.Errorf("%w: invalid key escape 0x%02x", model.ErrMalformedValue, b[i+1])
		}
	}
	return nil, 0, fmt.Errorf("%w: unterminated key component", model.ErrMalformedValue)
}

// successor returns the smallest key greater than every key with prefix p,
// or nil when no such key exists.
func successor(p []byte) []byte {
	out := bytes.Clone(p)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
