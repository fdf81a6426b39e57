// Package scene provides the committed KeyedObject data model: cameras, datasets (meshes),
// lighting, and visualizations, adapted from the teacher's shared/state package and
// supplemented from original_source/src/data/{Visualization,Lighting}.cpp per SPEC_FULL.md
// §3.1.
package scene

import (
	"math"
	"math/rand"

	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// GlobalUp is the world's up vector, used to derive a camera's left/up basis from its
// forward direction.
var GlobalUp = geom.Vector{X: 0, Y: 1, Z: 0}

// Camera represents a camera in 3-dimensional space, kept close to the teacher's
// shared/state.Camera: position plus an orthonormal forward/left/up basis derived from a
// look direction, so forward/left/up never drift out of orthogonality across Yaw/Pitch.
type Camera struct {
	Pos                      geom.Vector
	forward, left, up        geom.Vector
	Fov                      float64
	Width, Height            int
}

// NewCamera builds a Camera at pos looking in direction dir, with the given field of view
// and image dimensions. Returns an error if dir is parallel to GlobalUp.
func NewCamera(pos, dir geom.Vector, fov float64, width, height int) (Camera, error) {
	if dir.Cross(GlobalUp).Zero() {
		return Camera{}, errors.Errorf("scene: camera direction %v is parallel to global up %v", dir, GlobalUp)
	}
	forward := dir.Norm()
	left := dir.Cross(GlobalUp).Norm()
	up := left.Cross(forward)
	return Camera{Pos: pos, forward: forward, left: left, up: up, Fov: fov, Width: width, Height: height}, nil
}

func (c Camera) Forward() geom.Vector { return c.forward }
func (c Camera) Left() geom.Vector    { return c.left }
func (c Camera) Up() geom.Vector      { return c.up }

// Yaw rotates the camera by theta radians about its up vector.
func (c *Camera) Yaw(theta float64) {
	if math.Mod(theta, 2*math.Pi) == 0.0 {
		return
	}
	c.forward = c.forward.Rotate(c.up, theta).Norm()
	c.left = c.forward.Cross(GlobalUp).Norm()
	c.up = c.left.Cross(c.forward).Norm()
}

// Pitch rotates the camera by theta radians about its left vector.
func (c *Camera) Pitch(theta float64) {
	if math.Mod(theta, 2*math.Pi) == 0.0 {
		return
	}
	c.forward = c.forward.Rotate(c.left, theta).Norm()
	c.up = c.left.Cross(c.forward).Norm()
}

// RayDirection returns the primary ray direction through pixel (x, y) of an image
// Width x Height pixels.
func (c Camera) RayDirection(x, y int) geom.Vector {
	aspect := float64(c.Width) / float64(c.Height)
	scale := math.Tan(c.Fov / 2)

	ndcX := (2*(float64(x)+0.5)/float64(c.Width) - 1) * aspect * scale
	ndcY := (1 - 2*(float64(y)+0.5)/float64(c.Height)) * scale

	dir := c.forward.Add(c.left.Scale(ndcX)).Add(c.up.Scale(ndcY))
	return dir.Norm()
}

// PixelOrder returns the sequence of pixel indices (row-major, 0..Width*Height-1) that
// camera-ray generation should emit, permuted if permute is set (GXY_PERMUTE_PIXELS,
// SPEC_FULL.md §6) to spread load across the pool's priority buckets rather than sweeping
// scanlines in a way that concentrates primaries on one spatial region at a time.
func (c Camera) PixelOrder(permute bool) []int {
	n := c.Width * c.Height
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if permute {
		rand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

// ClassType implements keyed.Object.
func (Camera) ClassType() string { return "Camera" }

// SerialSize implements keyed.Object.
func (Camera) SerialSize() int {
	return 3*geom.Vector{}.SerialSize() + 8 + 4 + 4
}

// Serialize implements keyed.Object.
func (c Camera) Serialize(buf []byte) []byte {
	buf = wire.PutFloat64(buf, c.Pos.X)
	buf = wire.PutFloat64(buf, c.Pos.Y)
	buf = wire.PutFloat64(buf, c.Pos.Z)
	buf = wire.PutFloat64(buf, c.forward.X)
	buf = wire.PutFloat64(buf, c.forward.Y)
	buf = wire.PutFloat64(buf, c.forward.Z)
	buf = wire.PutFloat64(buf, c.up.X)
	buf = wire.PutFloat64(buf, c.up.Y)
	buf = wire.PutFloat64(buf, c.up.Z)
	buf = wire.PutFloat64(buf, c.Fov)
	buf = wire.PutInt32(buf, int32(c.Width))
	buf = wire.PutInt32(buf, int32(c.Height))
	return buf
}

// Deserialize implements keyed.Object. forward/up are restored directly (they were already
// orthonormal when serialized) and left is re-derived, mirroring the teacher's
// UnmarshalBinary which reconstructs via NewCamera rather than trusting a stored left vector.
func (c *Camera) Deserialize(buf []byte) ([]byte, error) {
	var err error
	read := func(f *float64) {
		if err != nil {
			return
		}
		*f, buf, err = wire.GetFloat64(buf)
	}
	read(&c.Pos.X)
	read(&c.Pos.Y)
	read(&c.Pos.Z)
	read(&c.forward.X)
	read(&c.forward.Y)
	read(&c.forward.Z)
	read(&c.up.X)
	read(&c.up.Y)
	read(&c.up.Z)
	read(&c.Fov)
	if err != nil {
		return buf, errors.Wrap(err, "scene: deserializing camera")
	}

	var w, h int32
	if w, buf, err = wire.GetInt32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing camera width")
	}
	if h, buf, err = wire.GetInt32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing camera height")
	}
	c.Width, c.Height = int(w), int(h)
	c.left = c.forward.Cross(GlobalUp).Norm()
	return buf, nil
}

// LocalCommit implements keyed.Object. Cameras need no native resource allocation on
// commit.
func (Camera) LocalCommit() error { return nil }
