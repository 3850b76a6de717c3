package feature

import (
	"testing"
	"time"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPOI(t *testing.T) *Adapter {
	t.Helper()
	idx, err := index.Spatial("spatial", 16)
	require.NoError(t, err)
	a, err := NewAdapter("poi", idx,
		Attribute{Name: "name", Type: String},
		Attribute{Name: "rank", Type: Int64},
		Attribute{Name: "score", Type: Float64},
		Attribute{Name: "open", Type: Bool},
		Attribute{Name: "seen", Type: Time},
		Attribute{Name: "blob", Type: Bytes},
	)
	require.NoError(t, err)
	return a
}

func TestAdapter_Layout(t *testing.T) {
	a := newPOI(t)
	assert.Equal(t, []model.FieldID{"geom.x", "geom.y", "name", "rank", "score", "open", "seen", "blob"}, a.Fields())
	assert.Len(t, a.Attributes(), 6)
}

func TestAdapter_RoundTrip(t *testing.T) {
	a := newPOI(t)
	seen := time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)
	in := &Feature{
		ID:       "p1",
		Geometry: Point{13.4, 52.5},
		Attributes: map[model.FieldID]any{
			"name":  "cafe",
			"rank":  int64(3),
			"score": 4.5,
			"open":  true,
			"seen":  seen,
			"blob":  []byte{0, 1, 2},
		},
	}

	row, err := a.Row(in)
	require.NoError(t, err)
	assert.Equal(t, model.AdapterID("poi"), row.Key.AdapterID)

	out, err := adapter.DecodeRow[*Feature](a, row)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAdapter_DecodeSubset(t *testing.T) {
	a := newPOI(t)
	e, err := a.Encode(&Feature{ID: "p", Geometry: Point{1, 2}, Attributes: map[model.FieldID]any{"name": "n", "rank": 7}})
	require.NoError(t, err)

	var kept []adapter.Field
	for _, f := range e.Fields {
		if f.ID != "geom.y" && f.ID != "rank" {
			kept = append(kept, f)
		}
	}
	f, err := a.Decode(adapter.Encoded{DataID: e.DataID, Fields: kept})
	require.NoError(t, err)
	assert.Nil(t, f.Geometry)
	assert.Equal(t, map[model.FieldID]any{"name": "n"}, f.Attributes)
}

func TestAdapter_EncodeErrors(t *testing.T) {
	a := newPOI(t)

	_, err := a.Encode(&Feature{Geometry: Point{0, 0}})
	assert.Error(t, err)

	_, err = a.Encode(&Feature{ID: "p", Geometry: Point{0}})
	assert.Error(t, err)

	_, err = a.Encode(&Feature{ID: "p", Geometry: Point{0, 0}, Attributes: map[model.FieldID]any{"nope": "x"}})
	assert.Error(t, err)

	_, err = a.Encode(&Feature{ID: "p", Geometry: Point{0, 0}, Attributes: map[model.FieldID]any{"rank": "x"}})
	assert.Error(t, err)

	_, err = a.Row(&Feature{ID: "p", Geometry: Point{500, 0}})
	assert.ErrorIs(t, err, index.ErrOutOfBounds)
}

func TestNewAdapter_Errors(t *testing.T) {
	idx, err := index.Spatial("spatial", 16)
	require.NoError(t, err)

	_, err = NewAdapter("a", nil)
	assert.Error(t, err)
	_, err = NewAdapter("a", idx, Attribute{Name: "n"}, Attribute{Name: "n"})
	assert.Error(t, err)
	_, err = NewAdapter("a", idx, Attribute{Name: "geom.x", Type: Float64})
	assert.Error(t, err)
}
