package scene

import (
	"testing"

	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisualizationSerializeDeserializeRoundTrip(t *testing.T) {
	v := &Visualization{
		Dataset:         keyed.Key(42),
		Lighting:        keyed.Key(7),
		GlobalBox:       geom.Box{Min: geom.Vector{X: -1, Y: -1, Z: -1}, Max: geom.Vector{X: 1, Y: 1, Z: 1}},
		ReverseLighting: true,
		Annotation:      "preview",
	}

	buf := v.Serialize(make([]byte, 0, v.SerialSize()))
	assert.Len(t, buf, v.SerialSize())

	got := &Visualization{}
	rest, err := got.Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)

	assert.Equal(t, v.Dataset, got.Dataset)
	assert.Equal(t, v.Lighting, got.Lighting)
	assert.Equal(t, v.ReverseLighting, got.ReverseLighting)
	assert.Equal(t, v.Annotation, got.Annotation)
	assert.InDelta(t, v.GlobalBox.Max.X, got.GlobalBox.Max.X, 1e-9)
}
