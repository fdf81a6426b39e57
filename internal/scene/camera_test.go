package scene

import (
	"math"
	"testing"

	"github.com/mwindels/galaxy/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCameraRejectsDirectionParallelToUp(t *testing.T) {
	_, err := NewCamera(geom.Vector{}, GlobalUp, math.Pi/2, 640, 480)
	assert.Error(t, err)
}

func TestNewCameraBasisIsOrthonormal(t *testing.T) {
	c, err := NewCamera(geom.Vector{}, geom.Vector{X: 0, Y: 0, Z: -1}, math.Pi/2, 640, 480)
	require.NoError(t, err)

	assert.InDelta(t, 0, c.Forward().Dot(c.Left()), 1e-9)
	assert.InDelta(t, 0, c.Forward().Dot(c.Up()), 1e-9)
	assert.InDelta(t, 0, c.Left().Dot(c.Up()), 1e-9)
	assert.InDelta(t, 1, c.Forward().Len(), 1e-9)
}

func TestYawPitchPreserveOrthonormality(t *testing.T) {
	c, err := NewCamera(geom.Vector{}, geom.Vector{X: 0, Y: 0, Z: -1}, math.Pi/2, 640, 480)
	require.NoError(t, err)

	c.Yaw(0.3)
	c.Pitch(0.2)

	assert.InDelta(t, 0, c.Forward().Dot(c.Left()), 1e-9)
	assert.InDelta(t, 0, c.Forward().Dot(c.Up()), 1e-9)
	assert.InDelta(t, 1, c.Forward().Len(), 1e-9)
}

func TestCameraSerializeDeserializeRoundTrip(t *testing.T) {
	c, err := NewCamera(geom.Vector{X: 1, Y: 2, Z: 3}, geom.Vector{X: 1, Y: 0, Z: -1}, 1.2, 800, 600)
	require.NoError(t, err)

	buf := c.Serialize(make([]byte, 0, c.SerialSize()))
	assert.Len(t, buf, c.SerialSize())

	var got Camera
	rest, err := got.Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)

	assert.InDelta(t, c.Pos.X, got.Pos.X, 1e-9)
	assert.InDelta(t, c.Fov, got.Fov, 1e-9)
	assert.Equal(t, c.Width, got.Width)
	assert.Equal(t, c.Height, got.Height)
	assert.InDelta(t, c.Forward().X, got.Forward().X, 1e-9)
	assert.InDelta(t, c.Left().X, got.Left().X, 1e-9)
}

func TestPixelOrderCoversEveryPixelExactlyOnce(t *testing.T) {
	c, err := NewCamera(geom.Vector{}, geom.Vector{X: 0, Y: 0, Z: -1}, 1.0, 4, 3)
	require.NoError(t, err)

	order := c.PixelOrder(true)
	seen := make(map[int]bool, len(order))
	for _, idx := range order {
		assert.False(t, seen[idx])
		seen[idx] = true
	}
	assert.Len(t, seen, 12)
}
