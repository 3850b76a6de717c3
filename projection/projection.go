package projection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/bitmask"
	"github.com/hupe1980/geokv/fieldvalue"
	"github.com/hupe1980/geokv/model"
)

// Outcome is the result kind of applying a Transform to a row.
type Outcome uint8

const (
	// Unchanged means the row is emitted byte-identical.
	Unchanged Outcome = iota
	// Dropped means the row is not emitted.
	Dropped
	// Reencoded means the row is emitted with a new bitmask and value.
	Reencoded
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Dropped:
		return "dropped"
	case Reencoded:
		return "reencoded"
	default:
		return fmt.Sprintf("outcome(%d)", o)
	}
}

// MismatchPolicy decides what happens to rows of other adapters.
type MismatchPolicy uint8

const (
	// PassThrough emits rows of other adapters unmodified.
	PassThrough MismatchPolicy = iota
	// DropMismatched drops rows of other adapters.
	DropMismatched
)

// Config configures a Transform.
type Config struct {
	// Adapter is the target adapter. Required.
	Adapter adapter.Model
	// FieldIDs are the explicitly requested fields.
	FieldIDs []model.FieldID
	// Dimensions are the index dimension fields. They are always retained.
	Dimensions []model.FieldID
	// MismatchPolicy applies to rows whose adapter id differs from Adapter's.
	MismatchPolicy MismatchPolicy
}

// Result is the output of ApplyRaw.
type Result struct {
	Outcome Outcome
	Bitmask []byte
	Value   []byte
}

// Transform projects rows of one adapter onto a fixed ordinal set.
// It is immutable after New and safe for concurrent use.
type Transform struct {
	adapterID model.AdapterID
	fieldIDs  []model.FieldID
	target    *roaring.Bitmap
	policy    MismatchPolicy
}

// New resolves the target ordinal set. Field ids unknown to the adapter are
// ignored: they can never be present in a row.
func New(cfg Config) (*Transform, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("projection: adapter is required")
	}
	ids := make([]model.FieldID, 0, len(cfg.FieldIDs)+len(cfg.Dimensions))
	ids = append(ids, cfg.FieldIDs...)
	ids = append(ids, cfg.Dimensions...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	target := roaring.New()
	for _, id := range ids {
		if pos, ok := cfg.Adapter.Position(id); ok {
			target.Add(uint32(pos))
		}
	}
	target.RunOptimize()

	return &Transform{
		adapterID: cfg.Adapter.ID(),
		fieldIDs:  ids,
		target:    target,
		policy:    cfg.MismatchPolicy,
	}, nil
}

// AdapterID returns the target adapter id.
func (t *Transform) AdapterID() model.AdapterID { return t.adapterID }

// FieldIDs returns the sorted union of requested and dimension field ids.
func (t *Transform) FieldIDs() []model.FieldID { return slices.Clone(t.fieldIDs) }

// Ordinals returns the target ordinals in ascending order.
func (t *Transform) Ordinals() []int {
	out := make([]int, 0, t.target.GetCardinality())
	it := t.target.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// ApplyRaw projects a single (bitmask, value) pair. Input buffers are never
// modified; the Reencoded outcome always returns fresh buffers.
func (t *Transform) ApplyRaw(adapterID model.AdapterID, mask, value []byte) (Result, error) {
	if adapterID != t.adapterID {
		if t.policy == DropMismatched {
			return Result{Outcome: Dropped}, nil
		}
		return Result{Outcome: Unchanged, Bitmask: mask, Value: value}, nil
	}

	ordinals, err := bitmask.Decode(mask)
	if err != nil {
		return Result{}, err
	}
	keep := make([]bool, len(ordinals))
	retained := make([]int, 0, len(ordinals))
	for i, o := range ordinals {
		if t.target.Contains(uint32(o)) {
			keep[i] = true
			retained = append(retained, o)
		}
	}
	// Framing is checked even for rows that end up dropped.
	frames, err := fieldvalue.Deserialize(value, len(ordinals))
	if err != nil {
		return Result{}, err
	}
	if len(retained) == 0 {
		return Result{Outcome: Dropped}, nil
	}
	if len(retained) == len(ordinals) {
		return Result{Outcome: Unchanged, Bitmask: mask, Value: value}, nil
	}

	kept := make([][]byte, 0, len(retained))
	for i, f := range frames {
		if keep[i] {
			kept = append(kept, f)
		}
	}
	newMask, err := bitmask.Encode(retained)
	if err != nil {
		return Result{}, err
	}
	newValue, err := fieldvalue.Serialize(kept)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Reencoded, Bitmask: newMask, Value: newValue}, nil
}

// Apply projects a row. The returned row shares the unchanged parts of the
// key with the input.
func (t *Transform) Apply(row model.Row) (model.Row, Outcome, error) {
	res, err := t.ApplyRaw(row.Key.AdapterID, row.Key.Bitmask, row.Value)
	if err != nil {
		return model.Row{}, 0, fmt.Errorf("project %s: %w", row.Key, err)
	}
	switch res.Outcome {
	case Dropped:
		return model.Row{}, Dropped, nil
	case Unchanged:
		return row, Unchanged, nil
	}
	out := row
	out.Key.Bitmask = res.Bitmask
	out.Value = res.Value
	return out, Reencoded, nil
}
