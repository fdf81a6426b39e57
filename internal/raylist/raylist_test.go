package raylist

import (
	"testing"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleList(n int) *RayList {
	rl := New(keyed.Key(1), keyed.Key(2), keyed.Key(3), 7, Primary)
	for i := 0; i < n; i++ {
		rl.Append(
			geom.Vector{X: float64(i), Y: 0, Z: 0},
			geom.Vector{X: 0, Y: 0, Z: -1},
			colour.RGB{R: 1, G: 1, B: 1, O: 1},
			0,
			int32(i), 0, int32(i),
		)
	}
	return rl
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	rl := sampleList(3)
	rl.SetHit(1, geom.Vector{X: 1, Y: 0, Z: -5}, colour.RGB{R: 0.5, G: 0.5, B: 0.5, O: 1}, 5, TermSurface)

	buf := rl.Serialize(make([]byte, 0, rl.SerialSize()))
	assert.Len(t, buf, rl.SerialSize())

	got, rest, err := Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)

	assert.Equal(t, rl.Renderer, got.Renderer)
	assert.Equal(t, rl.Frame, got.Frame)
	assert.Equal(t, rl.RayType, got.RayType)
	require.Equal(t, 3, got.Len())
	assert.InDelta(t, 1, got.OriginX[1], 1e-9)
	assert.Equal(t, TermSurface, got.Term[1])
}

func TestSplitProducesBoundedChunks(t *testing.T) {
	rl := sampleList(10)
	chunks := rl.Split(4)
	require.Len(t, chunks, 3)
	assert.Equal(t, 4, chunks[0].Len())
	assert.Equal(t, 4, chunks[1].Len())
	assert.Equal(t, 2, chunks[2].Len())

	total := 0
	for _, c := range chunks {
		total += c.Len()
	}
	assert.Equal(t, 10, total)
}

func TestSplitBelowMaxReturnsOriginal(t *testing.T) {
	rl := sampleList(2)
	chunks := rl.Split(10)
	require.Len(t, chunks, 1)
	assert.Same(t, rl, chunks[0])
}

func TestSelectPreservesRayFields(t *testing.T) {
	rl := sampleList(5)
	out := rl.Select([]int{1, 3})
	require.Equal(t, 2, out.Len())
	assert.Equal(t, rl.PixelX[1], out.PixelX[0])
	assert.Equal(t, rl.PixelX[3], out.PixelX[1])
}
