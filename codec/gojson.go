package codec

import (
	"bytes"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// ErrTrailingData is returned when a descriptor is followed by more input.
var ErrTrailingData = errors.New("codec: trailing data after descriptor")

// GoJSON is a JSON Codec backed by github.com/goccy/go-json. Unmarshal is
// strict: unknown fields and trailing data are rejected.
type GoJSON struct{}

// Marshal implements Codec.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal implements Codec.
func (GoJSON) Unmarshal(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// Name implements Codec.
func (GoJSON) Name() string { return "go-json" }
