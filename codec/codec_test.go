package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type descriptor struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

func TestGoJSON_RoundTrip(t *testing.T) {
	in := descriptor{ID: "roads", Fields: []string{"geom.x", "geom.y", "name"}}

	b, err := Default.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"roads","fields":["geom.x","geom.y","name"]}`, string(b))

	var out descriptor
	require.NoError(t, Default.Unmarshal(b, &out))
	assert.Equal(t, in, out)
	assert.Equal(t, "go-json", Default.Name())
}

func TestGoJSON_Strict(t *testing.T) {
	var out descriptor

	err := Default.Unmarshal([]byte(`{"id":"roads","extra":1}`), &out)
	assert.Error(t, err)

	err = Default.Unmarshal([]byte(`{"id":"roads"} {"id":"rivers"}`), &out)
	assert.ErrorIs(t, err, ErrTrailingData)

	require.NoError(t, Default.Unmarshal([]byte("{\"id\":\"roads\"}\n"), &out))
	assert.Equal(t, "roads", out.ID)

	assert.Error(t, Default.Unmarshal([]byte(`{"id":`), &out))
}
