// Package raylist implements the RayList wire type named in SPEC_FULL.md §4.8/§6: a
// struct-of-arrays batch of rays belonging to one RenderingSet + Rendering + frame + ray
// type, classified and forwarded between the processes that own adjacent spatial regions.
// There is no teacher equivalent (the teacher traced one ray at a time in process); this
// package is grounded directly on spec.md §4.8's RayList definition and wire layout, using
// the same internal/wire codec every other keyed type uses.
package raylist

import (
	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// Type is the ray type a RayList batches together; shading policy depends on it.
type Type int32

const (
	Primary Type = iota
	Shadow
	AO
)

// Termination is the outcome the intersector stamped on a ray.
type Termination int32

const (
	TermOpaque Termination = iota
	TermSurface
	TermBoundary
	TermTimeout
)

// Class is the renderer's post-intersection disposition for one ray, per SPEC_FULL.md
// §4.8's classification table.
type Class int32

const (
	ClassTerminated Class = -4
	ClassDrop       Class = -3
	ClassKeep       Class = -2
	ClassBoundary   Class = -1
	// Class values >= 0 mean "ship to this rank".
)

// RayList is a struct-of-arrays batch of rays sharing a RenderingSet, Rendering, frame, and
// ray Type.
type RayList struct {
	Renderer     keyed.Key
	RenderingSet keyed.Key
	Rendering    keyed.Key
	Frame        int32
	RayType      Type

	OriginX, OriginY, OriginZ    []float64
	DirX, DirY, DirZ             []float64
	ColR, ColG, ColB, ColO       []float64
	AccumT                       []float64
	PixelX, PixelY               []int32
	RayIndex                     []int32
	Term                         []Termination
	Classification               []Class
}

// New returns an empty RayList for the given keys/frame/type, ready for Append.
func New(renderer, renderingSet, rendering keyed.Key, frame int32, rayType Type) *RayList {
	return &RayList{Renderer: renderer, RenderingSet: renderingSet, Rendering: rendering, Frame: frame, RayType: rayType}
}

// Len returns the number of rays in the batch.
func (rl *RayList) Len() int { return len(rl.OriginX) }

// Append adds one ray to the batch.
func (rl *RayList) Append(origin, dir geom.Vector, col colour.RGB, t float64, pixelX, pixelY, rayIndex int32) {
	rl.OriginX = append(rl.OriginX, origin.X)
	rl.OriginY = append(rl.OriginY, origin.Y)
	rl.OriginZ = append(rl.OriginZ, origin.Z)
	rl.DirX = append(rl.DirX, dir.X)
	rl.DirY = append(rl.DirY, dir.Y)
	rl.DirZ = append(rl.DirZ, dir.Z)
	rl.ColR = append(rl.ColR, col.R)
	rl.ColG = append(rl.ColG, col.G)
	rl.ColB = append(rl.ColB, col.B)
	rl.ColO = append(rl.ColO, col.O)
	rl.AccumT = append(rl.AccumT, t)
	rl.PixelX = append(rl.PixelX, pixelX)
	rl.PixelY = append(rl.PixelY, pixelY)
	rl.RayIndex = append(rl.RayIndex, rayIndex)
	rl.Term = append(rl.Term, TermOpaque)
	rl.Classification = append(rl.Classification, ClassDrop)
}

// Origin returns ray i's origin as a Vector.
func (rl *RayList) Origin(i int) geom.Vector {
	return geom.Vector{X: rl.OriginX[i], Y: rl.OriginY[i], Z: rl.OriginZ[i]}
}

// Dir returns ray i's direction as a Vector.
func (rl *RayList) Dir(i int) geom.Vector {
	return geom.Vector{X: rl.DirX[i], Y: rl.DirY[i], Z: rl.DirZ[i]}
}

// Color returns ray i's accumulated color.
func (rl *RayList) Color(i int) colour.RGB {
	return colour.RGB{R: rl.ColR[i], G: rl.ColG[i], B: rl.ColB[i], O: rl.ColO[i]}
}

// SetHit records the result of an intersection test for ray i: its new origin (the hit
// point), new accumulated color, and termination outcome.
func (rl *RayList) SetHit(i int, hitPoint geom.Vector, col colour.RGB, accumT float64, term Termination) {
	rl.OriginX[i], rl.OriginY[i], rl.OriginZ[i] = hitPoint.X, hitPoint.Y, hitPoint.Z
	rl.ColR[i], rl.ColG[i], rl.ColB[i], rl.ColO[i] = col.R, col.G, col.B, col.O
	rl.AccumT[i] = accumT
	rl.Term[i] = term
}

// Select returns a new RayList containing only the rays at the given indices, used to
// split an oversized packet or to carve out one destination's share of a mixed batch.
func (rl *RayList) Select(indices []int) *RayList {
	out := New(rl.Renderer, rl.RenderingSet, rl.Rendering, rl.Frame, rl.RayType)
	n := len(indices)
	out.OriginX, out.OriginY, out.OriginZ = make([]float64, n), make([]float64, n), make([]float64, n)
	out.DirX, out.DirY, out.DirZ = make([]float64, n), make([]float64, n), make([]float64, n)
	out.ColR, out.ColG, out.ColB, out.ColO = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	out.AccumT = make([]float64, n)
	out.PixelX, out.PixelY = make([]int32, n), make([]int32, n)
	out.RayIndex = make([]int32, n)
	out.Term = make([]Termination, n)
	out.Classification = make([]Class, n)

	for dst, src := range indices {
		out.OriginX[dst], out.OriginY[dst], out.OriginZ[dst] = rl.OriginX[src], rl.OriginY[src], rl.OriginZ[src]
		out.DirX[dst], out.DirY[dst], out.DirZ[dst] = rl.DirX[src], rl.DirY[src], rl.DirZ[src]
		out.ColR[dst], out.ColG[dst], out.ColB[dst], out.ColO[dst] = rl.ColR[src], rl.ColG[src], rl.ColB[src], rl.ColO[src]
		out.AccumT[dst] = rl.AccumT[src]
		out.PixelX[dst], out.PixelY[dst] = rl.PixelX[src], rl.PixelY[src]
		out.RayIndex[dst] = rl.RayIndex[src]
		out.Term[dst] = rl.Term[src]
		out.Classification[dst] = rl.Classification[src]
	}
	return out
}

// Split divides rl into chunks of at most maxRays rays each, per SPEC_FULL.md §4.8's "oversized
// retained packets are split before re-enqueue".
func (rl *RayList) Split(maxRays int) []*RayList {
	if rl.Len() <= maxRays || maxRays <= 0 {
		return []*RayList{rl}
	}
	var chunks []*RayList
	for start := 0; start < rl.Len(); start += maxRays {
		end := start + maxRays
		if end > rl.Len() {
			end = rl.Len()
		}
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		chunks = append(chunks, rl.Select(indices))
	}
	return chunks
}

const headerFields = 8 + 8 + 8 + 4 + 4 + 4 // three keys, frame, type, count

// SerialSize returns the number of bytes Serialize writes.
func (rl *RayList) SerialSize() int {
	n := rl.Len()
	return headerFields + n*(3*8+3*8+4*8+8+4+4+4+4+4)
}

// Serialize writes rl's wire form: {rendererKey, renderingSetKey, renderingKey, frame, type,
// count, SoA arrays in fixed order}, per SPEC_FULL.md §6.
func (rl *RayList) Serialize(buf []byte) []byte {
	buf = wire.PutInt64(buf, int64(rl.Renderer))
	buf = wire.PutInt64(buf, int64(rl.RenderingSet))
	buf = wire.PutInt64(buf, int64(rl.Rendering))
	buf = wire.PutInt32(buf, rl.Frame)
	buf = wire.PutInt32(buf, int32(rl.RayType))

	n := rl.Len()
	buf = wire.PutInt32(buf, int32(n))
	for i := 0; i < n; i++ {
		buf = wire.PutFloat64(buf, rl.OriginX[i])
		buf = wire.PutFloat64(buf, rl.OriginY[i])
		buf = wire.PutFloat64(buf, rl.OriginZ[i])
		buf = wire.PutFloat64(buf, rl.DirX[i])
		buf = wire.PutFloat64(buf, rl.DirY[i])
		buf = wire.PutFloat64(buf, rl.DirZ[i])
		buf = wire.PutFloat64(buf, rl.ColR[i])
		buf = wire.PutFloat64(buf, rl.ColG[i])
		buf = wire.PutFloat64(buf, rl.ColB[i])
		buf = wire.PutFloat64(buf, rl.ColO[i])
		buf = wire.PutFloat64(buf, rl.AccumT[i])
		buf = wire.PutInt32(buf, rl.PixelX[i])
		buf = wire.PutInt32(buf, rl.PixelY[i])
		buf = wire.PutInt32(buf, rl.RayIndex[i])
		buf = wire.PutInt32(buf, int32(rl.Term[i]))
		buf = wire.PutInt32(buf, int32(rl.Classification[i]))
	}
	return buf
}

// Deserialize reconstructs a RayList from its wire form.
func Deserialize(buf []byte) (*RayList, []byte, error) {
	rl := &RayList{}
	var err error
	var renderer, renderingSet, rendering int64
	if renderer, buf, err = wire.GetInt64(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading renderer key")
	}
	if renderingSet, buf, err = wire.GetInt64(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading renderingset key")
	}
	if rendering, buf, err = wire.GetInt64(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading rendering key")
	}
	rl.Renderer, rl.RenderingSet, rl.Rendering = keyed.Key(renderer), keyed.Key(renderingSet), keyed.Key(rendering)

	if rl.Frame, buf, err = wire.GetInt32(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading frame")
	}
	var rayType int32
	if rayType, buf, err = wire.GetInt32(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading ray type")
	}
	rl.RayType = Type(rayType)

	var n int32
	if n, buf, err = wire.GetInt32(buf); err != nil {
		return nil, buf, errors.Wrap(err, "raylist: reading count")
	}

	rl.OriginX, rl.OriginY, rl.OriginZ = make([]float64, n), make([]float64, n), make([]float64, n)
	rl.DirX, rl.DirY, rl.DirZ = make([]float64, n), make([]float64, n), make([]float64, n)
	rl.ColR, rl.ColG, rl.ColB, rl.ColO = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	rl.AccumT = make([]float64, n)
	rl.PixelX, rl.PixelY = make([]int32, n), make([]int32, n)
	rl.RayIndex = make([]int32, n)
	rl.Term = make([]Termination, n)
	rl.Classification = make([]Class, n)

	for i := int32(0); i < n; i++ {
		if rl.OriginX[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.OriginY[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.OriginZ[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.DirX[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.DirY[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.DirZ[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.ColR[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.ColG[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.ColB[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.ColO[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.AccumT[i], buf, err = wire.GetFloat64(buf); err != nil {
			return nil, buf, err
		}
		if rl.PixelX[i], buf, err = wire.GetInt32(buf); err != nil {
			return nil, buf, err
		}
		if rl.PixelY[i], buf, err = wire.GetInt32(buf); err != nil {
			return nil, buf, err
		}
		if rl.RayIndex[i], buf, err = wire.GetInt32(buf); err != nil {
			return nil, buf, err
		}
		var term, class int32
		if term, buf, err = wire.GetInt32(buf); err != nil {
			return nil, buf, err
		}
		rl.Term[i] = Termination(term)
		if class, buf, err = wire.GetInt32(buf); err != nil {
			return nil, buf, err
		}
		rl.Classification[i] = Class(class)
	}

	return rl, buf, nil
}
