package scene

import (
	"testing"

	"github.com/mwindels/galaxy/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDirectionalNormalizes(t *testing.T) {
	l := NewLighting()
	l.AddDirectional(geom.Vector{X: 2, Y: 0, Z: 0})
	require.Len(t, l.Sources, 1)
	assert.InDelta(t, 1, l.Sources[0].Pos.X, 1e-9)
	assert.Equal(t, LightDirectional, l.Sources[0].Type)
}

func TestAddDirectionalZeroFallsBackToDiagonal(t *testing.T) {
	l := NewLighting()
	l.AddDirectional(geom.Vector{})
	require.Len(t, l.Sources, 1)
	assert.InDelta(t, 0.577350, l.Sources[0].Pos.X, 1e-6)
}

func TestLightingSerializeDeserializeRoundTrip(t *testing.T) {
	l := NewLighting()
	l.AddDirectional(geom.Vector{X: 0, Y: 1, Z: 0})
	l.AddPositional(geom.Vector{X: 5, Y: 5, Z: 5})
	l.Shadows = true
	l.AORays = 16
	l.AORadius = 2.5

	buf := l.Serialize(make([]byte, 0, l.SerialSize()))
	assert.Len(t, buf, l.SerialSize())

	got := &Lighting{}
	rest, err := got.Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)

	assert.Equal(t, l.Shadows, got.Shadows)
	assert.Equal(t, l.AORays, got.AORays)
	assert.InDelta(t, l.AORadius, got.AORadius, 1e-9)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, LightPositional, got.Sources[1].Type)
	assert.InDelta(t, 5, got.Sources[1].Pos.X, 1e-9)
}
