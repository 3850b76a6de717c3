package projection

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/model"
	"github.com/klauspost/compress/zstd"
)

// Option keys of a pushed-down projection. Values are opaque to the host.
const (
	OptionFieldIDs = "fieldIds"
	OptionAdapter  = "fieldIdsAdapter"
	OptionModel    = "model"
	// OptionMismatch is optional; "drop" selects DropMismatched.
	OptionMismatch = "mismatch"
)

// IteratorName is the name under which the projection registers with a store's
// iterator host.
const IteratorName = "ATTRIBUTE_SUBSETTING_ITERATOR"

// ErrInvalidOptions is returned when pushed-down options are incomplete or corrupt.
var ErrInvalidOptions = errors.New("invalid projection options")

var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	})
	zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
		dec, _ := zstd.NewReader(nil)
		return dec
	})
)

// EncodeOptions serializes the configuration of a pushed-down projection.
// The field id list always includes the index dimension fields.
func EncodeOptions(a adapter.Model, fieldIDs []model.FieldID, idx *index.Model, policy MismatchPolicy) (map[string]string, error) {
	if a == nil || idx == nil {
		return nil, fmt.Errorf("%w: adapter and index model are required", ErrInvalidOptions)
	}
	ids := append(slices.Clone(fieldIDs), idx.DimensionFields()...)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.Contains(string(id), ",") {
			return nil, fmt.Errorf("%w: field id %q contains a comma", ErrInvalidOptions, id)
		}
		names = append(names, string(id))
	}
	slices.Sort(names)
	names = slices.Compact(names)

	adapterBytes, err := adapter.Describe(a).MarshalBinary()
	if err != nil {
		return nil, err
	}
	modelBytes, err := idx.MarshalBinary()
	if err != nil {
		return nil, err
	}

	opts := map[string]string{
		OptionFieldIDs: strings.Join(names, ","),
		OptionAdapter:  pack(adapterBytes),
		OptionModel:    pack(modelBytes),
	}
	if policy == DropMismatched {
		opts[OptionMismatch] = "drop"
	}
	return opts, nil
}

// ValidateOptions reports whether all required options are present.
func ValidateOptions(opts map[string]string) bool {
	if opts == nil {
		return false
	}
	for _, k := range []string{OptionFieldIDs, OptionAdapter, OptionModel} {
		if _, ok := opts[k]; !ok {
			return false
		}
	}
	return true
}

// FromOptions rebuilds a Transform from options produced by EncodeOptions.
func FromOptions(opts map[string]string) (*Transform, error) {
	if !ValidateOptions(opts) {
		return nil, fmt.Errorf("%w: %s, %s and %s are required", ErrInvalidOptions, OptionFieldIDs, OptionAdapter, OptionModel)
	}

	modelBytes, err := unpack(opts[OptionModel])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidOptions, OptionModel, err)
	}
	var idx index.Model
	if err := idx.UnmarshalBinary(modelBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	adapterBytes, err := unpack(opts[OptionAdapter])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidOptions, OptionAdapter, err)
	}
	var layout adapter.Layout
	if err := layout.UnmarshalBinary(adapterBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	var ids []model.FieldID
	for _, s := range strings.Split(opts[OptionFieldIDs], ",") {
		if s != "" {
			ids = append(ids, model.FieldID(s))
		}
	}

	policy := PassThrough
	if opts[OptionMismatch] == "drop" {
		policy = DropMismatched
	}
	return New(Config{
		Adapter:        &layout,
		FieldIDs:       ids,
		Dimensions:     idx.DimensionFields(),
		MismatchPolicy: policy,
	})
}

// Iterator builds the row transform a store runs inside its scan path. The
// returned function reports false for dropped rows.
func Iterator(opts map[string]string) (func(model.Row) (model.Row, bool, error), error) {
	t, err := FromOptions(opts)
	if err != nil {
		return nil, err
	}
	return func(row model.Row) (model.Row, bool, error) {
		out, outcome, err := t.Apply(row)
		if err != nil {
			return model.Row{}, false, err
		}
		return out, outcome != Dropped, nil
	}, nil
}

func pack(b []byte) string {
	return base64.StdEncoding.EncodeToString(zstdEncoder().EncodeAll(b, nil))
}

func unpack(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return zstdDecoder().DecodeAll(raw, nil)
}
