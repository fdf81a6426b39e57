package render

import (
	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/intersect"
	"github.com/mwindels/galaxy/internal/scene"
)

// Renderer is the per-rank tracing engine named in spec.md §3: given a ray and the subbox
// this rank owns, it resolves the nearest local hit and shades it, or reports the point the
// ray left the subbox through so the caller can decide whether that is a boundary (forward
// to a neighbor) or the edge of the dataset entirely. There is no teacher equivalent (the
// teacher traced every ray against the whole, unpartitioned mesh); grounded on spec.md §3's
// Renderer definition and on internal/intersect, which it wraps.
type Renderer struct {
	Mesh     *scene.Mesh
	Lighting *scene.Lighting
}

// Outcome is the result of tracing one ray against a rank's owned subbox.
type Outcome struct {
	Hit   bool
	Color colour.RGB  // set when Hit
	Exit  geom.Vector // set when !Hit; the point the ray left the subbox through
}

// Trace fires one ray (origin, dir) against box, the caller's owned subbox, returning a hit
// shaded via internal/intersect.Shade or the exit point otherwise.
func (r *Renderer) Trace(box geom.Box, origin, dir geom.Vector) Outcome {
	if hit, found := intersect.NearestInBox(r.Mesh, box, origin, dir); found {
		return Outcome{Hit: true, Color: intersect.Shade(hit, origin, r.Mesh, r.Lighting)}
	}
	exit, _ := box.Exit(origin, dir)
	return Outcome{Hit: false, Exit: exit}
}
