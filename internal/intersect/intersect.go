// Package intersect finds the nearest surface a ray hits within a scene.Mesh and shades the
// hit point, adapted from the teacher's worker/shared/tracer package. The teacher's trace/
// phong functions worked against a single in-process state.Environment; here Nearest and
// Shade work against the committed scene.Mesh/scene.Lighting KeyedObjects so they can run
// on whichever rank owns the relevant mesh faces.
package intersect

import (
	"math"
	"math/rand"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/scene"
	"github.com/mwindels/rtreego"
)

// Hit describes the nearest surface a ray struck.
type Hit struct {
	Point, Normal geom.Vector
	Material      scene.Material
	Distance      float64
}

// Nearest returns the nearest intersection of the ray (origin, dir) with mesh's faces,
// culled first by the R-tree's bounding-box test and then refined with an exact
// triangle/ray test, adapted from tracer.trace.
func Nearest(mesh *scene.Mesh, origin, dir geom.Vector) (Hit, bool) {
	tree := mesh.Tree()
	if tree == nil {
		return Hit{}, false
	}

	candidates := tree.SearchCondition(func(bbox *rtreego.Rect) bool {
		return geom.NewBoxFromRect(bbox).Intersect(origin, dir)
	})

	var best Hit
	found := false
	for _, c := range candidates {
		face, ok := c.(scene.Face)
		if !ok {
			continue
		}
		tri := face.Triangle()
		point, weights, hit := tri.Intersection(origin, dir)
		if !hit {
			continue
		}
		dist := point.Sub(origin).Len()
		if found && dist >= best.Distance {
			continue
		}

		normal := tri.Normal()
		if tri.N1.Len() > 0 || tri.N2.Len() > 0 || tri.N3.Len() > 0 {
			normal = tri.InterpNormal(weights)
		}

		best = Hit{Point: point, Normal: normal, Material: face.Material(), Distance: dist}
		found = true
	}
	return best, found
}

// NearestInBox is Nearest restricted to hits landing inside box, for a partitioned render
// where a rank may only resolve intersections within its own owned subbox (SPEC_FULL.md
// §4.7): a hit outside box belongs to whichever rank actually owns that region, and is
// left for the ray to be forwarded to instead.
func NearestInBox(mesh *scene.Mesh, box geom.Box, origin, dir geom.Vector) (Hit, bool) {
	tree := mesh.Tree()
	if tree == nil {
		return Hit{}, false
	}

	candidates := tree.SearchCondition(func(bbox *rtreego.Rect) bool {
		return geom.NewBoxFromRect(bbox).Intersect(origin, dir)
	})

	var best Hit
	found := false
	for _, c := range candidates {
		face, ok := c.(scene.Face)
		if !ok {
			continue
		}
		tri := face.Triangle()
		point, weights, hit := tri.Intersection(origin, dir)
		if !hit || !box.IsInInclusive(point) {
			continue
		}
		dist := point.Sub(origin).Len()
		if found && dist >= best.Distance {
			continue
		}

		normal := tri.Normal()
		if tri.N1.Len() > 0 || tri.N2.Len() > 0 || tri.N3.Len() > 0 {
			normal = tri.InterpNormal(weights)
		}

		best = Hit{Point: point, Normal: normal, Material: face.Material(), Distance: dist}
		found = true
	}
	return best, found
}

// Shade computes the Phong-lit colour of a hit point, casting a shadow ray toward every
// light source and, if configured, ambient-occlusion rays within a hemisphere around the
// surface normal. Grounded on tracer.phong, extended with the AO sampling
// original_source/src/data/Lighting.cpp's AORays/AORadius fields call for.
func Shade(hit Hit, viewerPos geom.Vector, mesh *scene.Mesh, lighting *scene.Lighting) colour.RGB {
	out := hit.Material.Ka.Scale(lighting.Ka)

	for _, src := range lighting.Sources {
		var lightDir geom.Vector
		var lightDist float64
		if src.Type == scene.LightDirectional {
			lightDir = src.Pos.Scale(-1).Norm()
			lightDist = math.Inf(1)
		} else {
			toLight := src.Pos.Sub(hit.Point)
			lightDist = toLight.Len()
			lightDir = toLight.Norm()
		}

		if lighting.Shadows {
			shadowOrigin := hit.Point.Add(lightDir.Scale(lighting.Epsilon))
			if shadowHit, occluded := Nearest(mesh, shadowOrigin, lightDir); occluded && shadowHit.Distance < lightDist {
				continue
			}
		}

		diffuse := math.Max(lightDir.Dot(hit.Normal), 0.0)
		reflectDir := hit.Normal.Scale(2 * lightDir.Dot(hit.Normal)).Sub(lightDir)
		viewDir := viewerPos.Sub(hit.Point).Norm()
		specular := math.Pow(math.Max(reflectDir.Dot(viewDir), 0.0), hit.Material.Ns)

		out = out.Add(hit.Material.Kd.Scale(diffuse * lighting.Kd))
		out = out.Add(hit.Material.Ks.Scale(specular))
	}

	if lighting.AORays > 0 {
		occlusion := ambientOcclusion(hit, mesh, lighting)
		out = out.Scale(1.0 - occlusion)
	}

	return out
}

// ambientOcclusion estimates the fraction of a hemisphere around hit.Normal that is
// occluded within lighting.AORadius, by casting lighting.AORays random hemisphere samples.
func ambientOcclusion(hit Hit, mesh *scene.Mesh, lighting *scene.Lighting) float64 {
	occluded := 0
	for i := int32(0); i < lighting.AORays; i++ {
		dir := randomHemisphereSample(hit.Normal)
		origin := hit.Point.Add(dir.Scale(lighting.Epsilon))
		if shadowHit, hitSomething := Nearest(mesh, origin, dir); hitSomething && shadowHit.Distance < lighting.AORadius {
			occluded++
		}
	}
	return float64(occluded) / float64(lighting.AORays)
}

func randomHemisphereSample(normal geom.Vector) geom.Vector {
	for {
		v := geom.Vector{X: rand.Float64()*2 - 1, Y: rand.Float64()*2 - 1, Z: rand.Float64()*2 - 1}
		if v.Len() > 1.0 || v.Zero() {
			continue
		}
		v = v.Norm()
		if v.Dot(normal) < 0 {
			v = v.Scale(-1)
		}
		return v
	}
}
