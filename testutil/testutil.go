package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/geokv/bitmask"
	"github.com/hupe1980/geokv/fieldvalue"
	"github.com/hupe1980/geokv/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64Range returns a pseudo-random number in [minVal, maxVal).
func (r *RNG) Float64Range(minVal, maxVal float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minVal + r.rand.Float64()*(maxVal-minVal)
}

// Points generates num points with one coordinate per bounds pair.
func (r *RNG) Points(num int, bounds ...[2]float64) [][]float64 {
	out := make([][]float64, num)
	for i := range out {
		p := make([]float64, len(bounds))
		for d, b := range bounds {
			p[d] = r.Float64Range(b[0], b[1])
		}
		out[i] = p
	}
	return out
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Row builds a stored row with an empty index key. See RowAt.
func Row(adapterID model.AdapterID, dataID string, fields map[int]string) model.Row {
	return RowAt(adapterID, nil, dataID, fields)
}

// RowAt builds a stored row holding the given ordinal -> value pairs. It
// panics on invalid input and is meant for fixtures only.
func RowAt(adapterID model.AdapterID, indexKey []byte, dataID string, fields map[int]string) model.Row {
	sortKey, err := model.JoinSortKey(indexKey, []byte(dataID))
	if err != nil {
		panic(err)
	}
	ordinals := make([]int, 0, len(fields))
	for o := range fields {
		ordinals = append(ordinals, o)
	}
	mask, err := bitmask.Encode(ordinals)
	if err != nil {
		panic(err)
	}
	sorted, _ := bitmask.Decode(mask)
	frames := make([][]byte, len(sorted))
	for i, o := range sorted {
		frames[i] = []byte(fields[o])
	}
	value, err := fieldvalue.Serialize(frames)
	if err != nil {
		panic(err)
	}
	return model.Row{
		Key:   model.Key{Partition: []byte{0}, SortKey: sortKey, AdapterID: adapterID, Bitmask: mask},
		Value: value,
	}
}

// SliceReader is an in-memory row reader that records how it is used.
type SliceReader struct {
	rows      []model.Row
	pos       int
	failAfter int
	failErr   error
	err       error

	advanced atomic.Int64
	closes   atomic.Int64
}

// NewSliceReader returns a reader over rows.
func NewSliceReader(rows ...model.Row) *SliceReader {
	return &SliceReader{rows: rows, pos: -1, failAfter: -1}
}

// FailAfter makes the reader fail with err once n rows have been supplied.
func (r *SliceReader) FailAfter(n int, err error) *SliceReader {
	r.failAfter = n
	r.failErr = err
	return r
}

// Next advances to the next row.
func (r *SliceReader) Next() bool {
	if r.err != nil {
		return false
	}
	if r.closes.Load() > 0 {
		r.err = fmt.Errorf("testutil: read after close")
		return false
	}
	if r.failAfter >= 0 && r.pos+1 >= r.failAfter {
		r.err = r.failErr
		return false
	}
	if r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	r.advanced.Add(1)
	return true
}

// Row returns the current row.
func (r *SliceReader) Row() model.Row { return r.rows[r.pos] }

// Err returns the failure that stopped iteration, if any.
func (r *SliceReader) Err() error { return r.err }

// Close records the release. It never fails.
func (r *SliceReader) Close() error {
	r.closes.Add(1)
	return nil
}

// Closes returns how often Close was called.
func (r *SliceReader) Closes() int64 { return r.closes.Load() }

// Advanced returns how many rows were handed out.
func (r *SliceReader) Advanced() int64 { return r.advanced.Load() }
