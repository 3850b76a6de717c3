package feature

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/geokv/model"
)

// Type is the type of an attribute.
type Type uint8

const (
	String Type = iota
	Float64
	Int64
	Bool
	Time
	Bytes
)

var typeNames = [...]string{"string", "float64", "int64", "bool", "time", "bytes"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// ParseType parses a type name as returned by Type.String.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(s, n) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// Attribute declares a typed attribute of a feature type.
type Attribute struct {
	Name model.FieldID
	Type Type
}

// EncodeValue encodes v as type t. Integer and float kinds are converted to
// the declared width.
func EncodeValue(t Type, v any) ([]byte, error) {
	switch t {
	case String:
		switch x := v.(type) {
		case string:
			return []byte(x), nil
		case fmt.Stringer:
			return []byte(x.String()), nil
		}
	case Float64:
		switch x := v.(type) {
		case float64:
			return binary.BigEndian.AppendUint64(nil, math.Float64bits(x)), nil
		case float32:
			return binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(x))), nil
		case int:
			return binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(x))), nil
		}
	case Int64:
		switch x := v.(type) {
		case int64:
			return binary.BigEndian.AppendUint64(nil, uint64(x)), nil
		case int:
			return binary.BigEndian.AppendUint64(nil, uint64(int64(x))), nil
		case int32:
			return binary.BigEndian.AppendUint64(nil, uint64(int64(x))), nil
		}
	case Bool:
		if x, ok := v.(bool); ok {
			if x {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		}
	case Time:
		if x, ok := v.(time.Time); ok {
			return binary.BigEndian.AppendUint64(nil, uint64(x.UnixNano())), nil
		}
	case Bytes:
		if x, ok := v.([]byte); ok {
			return x, nil
		}
	default:
		return nil, fmt.Errorf("unknown attribute type %d", t)
	}
	return nil, fmt.Errorf("cannot encode %T as %s", v, t)
}

// DecodeValue decodes a value written by EncodeValue.
func DecodeValue(t Type, b []byte) (any, error) {
	fixed := func(n int) error {
		if len(b) != n {
			return fmt.Errorf("%w: %s value of %d bytes", model.ErrMalformedValue, t, len(b))
		}
		return nil
	}
	switch t {
	case String:
		return string(b), nil
	case Float64:
		if err := fixed(8); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case Int64:
		if err := fixed(8); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case Bool:
		if err := fixed(1); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case Time:
		if err := fixed(8); err != nil {
			return nil, err
		}
		return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC(), nil
	case Bytes:
		return append([]byte(nil), b...), nil
	default:
		return nil, fmt.Errorf("unknown attribute type %d", t)
	}
}

// ParseValue parses the textual form of a value, as found in CSV input.
func ParseValue(t Type, s string) (any, error) {
	switch t {
	case String:
		return s, nil
	case Float64:
		return strconv.ParseFloat(s, 64)
	case Int64:
		return strconv.ParseInt(s, 10, 64)
	case Bool:
		return strconv.ParseBool(s)
	case Time:
		return time.Parse(time.RFC3339Nano, s)
	case Bytes:
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("unknown attribute type %d", t)
	}
}
