package scene

import (
	"testing"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMesh() *Mesh {
	m := &Mesh{
		vertices: []geom.Vector{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		materials: []Material{{Ka: colour.NewRGB(10, 10, 10), Kd: colour.NewRGB(255, 255, 255), Ns: 10}},
	}
	m.rawFaces = []meshFace{{verts: [3]uint32{0, 1, 2}, mat: 0, mesh: m}}
	m.buildTree()
	return m
}

func TestMeshFaceBoundsCoversTriangle(t *testing.T) {
	m := newTestMesh()
	rect := m.rawFaces[0].Bounds()
	assert.NotNil(t, rect)
}

func TestMeshTriangleAndMaterialAccessors(t *testing.T) {
	m := newTestMesh()
	face := m.rawFaces[0]

	tri := face.Triangle()
	assert.Equal(t, m.vertices[0], tri.P1)
	assert.Equal(t, m.vertices[1], tri.P2)
	assert.Equal(t, m.vertices[2], tri.P3)

	mat := face.Material()
	assert.Equal(t, m.materials[0].Ns, mat.Ns)
}

func TestMeshSerializeDeserializeRoundTrip(t *testing.T) {
	m := newTestMesh()

	buf := m.Serialize(make([]byte, 0, m.SerialSize()))
	assert.Len(t, buf, m.SerialSize())

	got := &Mesh{}
	rest, err := got.Deserialize(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.NoError(t, got.LocalCommit())

	require.Len(t, got.vertices, 3)
	assert.InDelta(t, m.vertices[1].X, got.vertices[1].X, 1e-9)
	require.Len(t, got.rawFaces, 1)
	assert.Equal(t, m.rawFaces[0].verts, got.rawFaces[0].verts)
	require.Len(t, got.materials, 1)
	assert.InDelta(t, m.materials[0].Ns, got.materials[0].Ns, 1e-9)
	assert.NotNil(t, got.Tree())
}
