package intersect

import (
	"testing"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleTriangleMesh() *scene.Mesh {
	vertices := []geom.Vector{
		{X: -10, Y: -10, Z: 0},
		{X: 10, Y: -10, Z: 0},
		{X: 0, Y: 10, Z: 0},
	}
	materials := []scene.Material{{
		Ka: colour.NewRGB(10, 10, 10),
		Kd: colour.NewRGB(200, 200, 200),
		Ks: colour.NewRGB(255, 255, 255),
		Ns: 32,
	}}
	faces := []scene.FaceDef{{Verts: [3]uint32{0, 1, 2}, Mat: 0}}
	return scene.NewMesh(vertices, nil, faces, materials)
}

func TestNearestHitsFrontFacingTriangle(t *testing.T) {
	mesh := singleTriangleMesh()

	hit, ok := Nearest(mesh, geom.Vector{X: 0, Y: 0, Z: 10}, geom.Vector{X: 0, Y: 0, Z: -1})
	require.True(t, ok)
	assert.InDelta(t, 0, hit.Point.Z, 1e-9)
	assert.InDelta(t, 32, hit.Material.Ns, 1e-9)
}

func TestNearestMissesWhenRayPassesOutsideTriangle(t *testing.T) {
	mesh := singleTriangleMesh()

	_, ok := Nearest(mesh, geom.Vector{X: 100, Y: 100, Z: 10}, geom.Vector{X: 0, Y: 0, Z: -1})
	assert.False(t, ok)
}

func TestShadeUnlitSceneReturnsAmbientOnly(t *testing.T) {
	mesh := singleTriangleMesh()
	lighting := scene.NewLighting()
	lighting.Ka = 1.0

	hit, ok := Nearest(mesh, geom.Vector{X: 0, Y: 0, Z: 10}, geom.Vector{X: 0, Y: 0, Z: -1})
	require.True(t, ok)

	out := Shade(hit, geom.Vector{X: 0, Y: 0, Z: 10}, mesh, lighting)
	assert.InDelta(t, hit.Material.Ka.R, out.R, 1e-9)
}

func TestShadeWithDirectionalLightAddsDiffuse(t *testing.T) {
	mesh := singleTriangleMesh()
	lighting := scene.NewLighting()
	lighting.Ka, lighting.Kd = 0.1, 1.0
	lighting.AddDirectional(geom.Vector{X: 0, Y: 0, Z: -1})

	hit, ok := Nearest(mesh, geom.Vector{X: 0, Y: 0, Z: 10}, geom.Vector{X: 0, Y: 0, Z: -1})
	require.True(t, ok)

	out := Shade(hit, geom.Vector{X: 0, Y: 0, Z: 10}, mesh, lighting)
	assert.Greater(t, out.R, hit.Material.Ka.R*0.1)
}
