package partition

import (
	"testing"

	"github.com/mwindels/galaxy/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorMinimizesSum(t *testing.T) {
	cases := []struct {
		size int
		want IJK
	}{
		{1, IJK{1, 1, 1}},
		{2, IJK{1, 1, 2}},
		{12, IJK{2, 2, 3}},
	}
	for _, c := range cases {
		got := Factor(c.size)
		assert.Equal(t, c.want, got, "size=%d", c.size)
	}
}

func TestFactorNeverExceedsNaiveSum(t *testing.T) {
	for size := 1; size <= 64; size++ {
		f := Factor(size)
		require.Equal(t, size, f.I*f.J*f.K, "product must equal size")
		assert.LessOrEqual(t, f.I+f.J+f.K, size+2, "size=%d", size)
	}
}

func TestPartitionCoverageExactlyOneOwner(t *testing.T) {
	global := geom.Box{Min: geom.Vector{}, Max: geom.Vector{X: 12, Y: 12, Z: 12}}
	p := New(global, 12)

	for x := 0.0; x < 12; x++ {
		for y := 0.0; y < 12; y++ {
			for z := 0.0; z < 12; z++ {
				pt := geom.Vector{X: x + 0.5, Y: y + 0.5, Z: z + 0.5}
				owners := 0
				for r := 0; r < 12; r++ {
					if p.Box(r).IsIn(pt) {
						owners++
					}
				}
				require.Equal(t, 1, owners, "point %v", pt)
			}
		}
	}
}

func TestNeighborsExteriorFacesAreMinusOne(t *testing.T) {
	global := geom.Box{Min: geom.Vector{}, Max: geom.Vector{X: 2, Y: 1, Z: 1}}
	p := New(global, 2)
	require.Equal(t, IJK{2, 1, 1}, p.Parts)

	n0 := p.Neighbors(0)
	assert.Equal(t, -1, n0[0])
	assert.Equal(t, 1, n0[1])

	n1 := p.Neighbors(1)
	assert.Equal(t, 0, n1[0])
	assert.Equal(t, -1, n1[1])
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	global := geom.Box{Min: geom.Vector{X: -1, Y: -2, Z: -3}, Max: geom.Vector{X: 4, Y: 5, Z: 6}}
	p := New(global, 8)

	buf := p.Serialize(nil)
	require.Len(t, buf, p.SerialSize())

	var p2 Partitioning
	rest, err := p2.Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, p.Global, p2.Global)
}
