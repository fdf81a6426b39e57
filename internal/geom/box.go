package geom

import (
	"math"

	"github.com/mwindels/galaxy/internal/wire"
	"github.com/mwindels/rtreego"
)

// boxNormals holds the outward normal vectors for the six faces of an axis-aligned 3D box,
// indexed the way Partitioning indexes neighbors: {-x, +x, -y, +y, -z, +z}.
var boxNormals = [6]Vector{
	{X: -1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0},
	{X: 0, Y: -1, Z: 0}, {X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1}, {X: 0, Y: 0, Z: 1},
}

// Box represents a rectangular 3-dimensional axis-aligned box.
type Box struct {
	Min Vector // the corner with the smallest coordinate values
	Max Vector // the corner with the largest coordinate values
}

// NewBoxFromRect converts an R-tree bounding rectangle into a Box, adapted from the
// teacher's shared/geom.NewBox.
func NewBoxFromRect(bbox *rtreego.Rect) Box {
	return Box{
		Min: Vector{X: bbox.PointCoord(0), Y: bbox.PointCoord(1), Z: bbox.PointCoord(2)},
		Max: Vector{
			X: bbox.PointCoord(0) + bbox.LengthsCoord(0),
			Y: bbox.PointCoord(1) + bbox.LengthsCoord(1),
			Z: bbox.PointCoord(2) + bbox.LengthsCoord(2),
		},
	}
}

// Size returns the box's extent along each axis.
func (b Box) Size() Vector {
	return b.Max.Sub(b.Min)
}

// IsIn returns whether the point p lies within the box, inclusive of the min face and
// exclusive of the max face on each axis (the right/upper-exclusive convention used to
// give every point in the global box exactly one owning subbox).
func (b Box) IsIn(p Vector) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// IsInInclusive is like IsIn but treats the max face as inclusive too; used for the
// global box bounds check where there is no "next" subbox to claim the boundary.
func (b Box) IsInInclusive(p Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersect determines whether the ray (origin, dir) intersects the box.
func (b Box) Intersect(origin, dir Vector) bool {
	for _, n := range boxNormals {
		if dir.Dot(n) == 0.0 {
			continue
		}

		var point Vector
		if n.Dot(Vector{X: 1, Y: 1, Z: 1}) < 0 {
			point = b.Min
		} else {
			point = b.Max
		}

		scale := point.Sub(origin).Dot(n) / dir.Dot(n)
		if scale < 0.0 {
			continue
		}

		hit := origin.Add(dir.Scale(scale))
		switch {
		case n.X != 0.0:
			if b.Min.Y <= hit.Y && hit.Y <= b.Max.Y && b.Min.Z <= hit.Z && hit.Z <= b.Max.Z {
				return true
			}
		case n.Y != 0.0:
			if b.Min.X <= hit.X && hit.X <= b.Max.X && b.Min.Z <= hit.Z && hit.Z <= b.Max.Z {
				return true
			}
		case n.Z != 0.0:
			if b.Min.X <= hit.X && hit.X <= b.Max.X && b.Min.Y <= hit.Y && hit.Y <= b.Max.Y {
				return true
			}
		}
	}
	return false
}

// ExitFace returns the index (into the {-x,+x,-y,+y,-z,+z} neighbor ordering) of the face
// that the ray (origin, dir) exits the box through.  origin is assumed to be inside b.
// It returns -1 if the ray direction is zero or never leaves through a finite face (should
// not happen for a non-zero direction and a bounded box).
func (b Box) ExitFace(origin, dir Vector) int {
	if dir.Zero() {
		return -1
	}

	best := -1
	bestScale := math.Inf(1)
	for i, n := range boxNormals {
		d := dir.Dot(n)
		if d <= 0.0 {
			continue
		}

		var point Vector
		if n.Dot(Vector{X: 1, Y: 1, Z: 1}) < 0 {
			point = b.Min
		} else {
			point = b.Max
		}

		scale := point.Sub(origin).Dot(n) / d
		if scale < 0.0 {
			continue
		}

		hit := origin.Add(dir.Scale(scale))
		inPlane := false
		switch {
		case n.X != 0.0:
			inPlane = b.Min.Y-epsilon <= hit.Y && hit.Y <= b.Max.Y+epsilon && b.Min.Z-epsilon <= hit.Z && hit.Z <= b.Max.Z+epsilon
		case n.Y != 0.0:
			inPlane = b.Min.X-epsilon <= hit.X && hit.X <= b.Max.X+epsilon && b.Min.Z-epsilon <= hit.Z && hit.Z <= b.Max.Z+epsilon
		case n.Z != 0.0:
			inPlane = b.Min.X-epsilon <= hit.X && hit.X <= b.Max.X+epsilon && b.Min.Y-epsilon <= hit.Y && hit.Y <= b.Max.Y+epsilon
		}

		if inPlane && scale < bestScale {
			bestScale = scale
			best = i
		}
	}
	return best
}

// Exit returns the point at which the ray (origin, dir) leaves the box through ExitFace's
// face, and whether it exits at all. Used to compute the origin a boundary ray is forwarded
// with once partition.Partitioning.Neighbor has identified the rank on the other side.
func (b Box) Exit(origin, dir Vector) (Vector, bool) {
	face := b.ExitFace(origin, dir)
	if face < 0 {
		return Vector{}, false
	}

	n := boxNormals[face]
	var point Vector
	if n.Dot(Vector{X: 1, Y: 1, Z: 1}) < 0 {
		point = b.Min
	} else {
		point = b.Max
	}
	scale := point.Sub(origin).Dot(n) / dir.Dot(n)
	return origin.Add(dir.Scale(scale)), true
}

// Enter returns the point at which the ray (origin, dir) first crosses into the box from
// outside, and whether it does at all; if origin already lies within b it is returned
// unchanged. The companion of ExitFace, used to find where a primary ray starting outside
// the global box (a camera sitting off the edge of the scene) first lands in it.
func (b Box) Enter(origin, dir Vector) (Vector, bool) {
	if b.IsInInclusive(origin) {
		return origin, true
	}
	if dir.Zero() {
		return Vector{}, false
	}

	best := math.Inf(1)
	found := false
	for _, n := range boxNormals {
		d := dir.Dot(n)
		if d >= 0.0 {
			continue
		}

		var point Vector
		if n.Dot(Vector{X: 1, Y: 1, Z: 1}) < 0 {
			point = b.Min
		} else {
			point = b.Max
		}

		scale := point.Sub(origin).Dot(n) / d
		if scale < 0.0 {
			continue
		}

		hit := origin.Add(dir.Scale(scale))
		inPlane := false
		switch {
		case n.X != 0.0:
			inPlane = b.Min.Y-epsilon <= hit.Y && hit.Y <= b.Max.Y+epsilon && b.Min.Z-epsilon <= hit.Z && hit.Z <= b.Max.Z+epsilon
		case n.Y != 0.0:
			inPlane = b.Min.X-epsilon <= hit.X && hit.X <= b.Max.X+epsilon && b.Min.Z-epsilon <= hit.Z && hit.Z <= b.Max.Z+epsilon
		case n.Z != 0.0:
			inPlane = b.Min.X-epsilon <= hit.X && hit.X <= b.Max.X+epsilon && b.Min.Y-epsilon <= hit.Y && hit.Y <= b.Max.Y+epsilon
		}

		if inPlane && scale < best {
			best = scale
			found = true
		}
	}
	if !found {
		return Vector{}, false
	}
	return origin.Add(dir.Scale(best)), true
}

const epsilon = 1e-6

// SerialSize returns the number of bytes Serialize writes for a box.
func (Box) SerialSize() int { return 2 * Vector{}.SerialSize() }

// Serialize appends the box's min/max corners to buf.
func (b Box) Serialize(buf []byte) []byte {
	buf = wire.PutFloat64(buf, b.Min.X)
	buf = wire.PutFloat64(buf, b.Min.Y)
	buf = wire.PutFloat64(buf, b.Min.Z)
	buf = wire.PutFloat64(buf, b.Max.X)
	buf = wire.PutFloat64(buf, b.Max.Y)
	buf = wire.PutFloat64(buf, b.Max.Z)
	return buf
}

// Deserialize reads a box's min/max corners from the front of buf.
func (b *Box) Deserialize(buf []byte) ([]byte, error) {
	var err error
	if b.Min.X, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	if b.Min.Y, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	if b.Min.Z, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	if b.Max.X, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	if b.Max.Y, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	if b.Max.Z, buf, err = wire.GetFloat64(buf); err != nil {
		return buf, err
	}
	return buf, nil
}
