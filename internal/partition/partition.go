// Package partition implements the structured 3-D decomposition of a global bounding box
// into one subbox per process, with face-neighbor links, per SPEC_FULL.md §4.7. The
// factorization, rank/ijk mapping, and neighbor-face numbering are ported directly from
// original_source/src/framework/Partitioning.cpp, which SPEC_FULL.md §9 names as the
// canonical one of the original's two partitioning routines.
package partition

import (
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/pkg/errors"
)

// IJK is a factor triple (i, j, k) with i*j*k == the world size.
type IJK struct {
	I, J, K int
}

// Factor returns the i,j,k triple minimizing i+j+k subject to i*j*k == size, ties broken by
// iteration order (the first minimum found). Ported from the original's nested-divisor scan:
// i ranges over divisors up to size/2, j over divisors of size/i up to (size/i)/2; the
// symmetric cases (e.g. i==size) are covered by the i==1,k==size leg of the scan instead.
func Factor(size int) IJK {
	if size == 1 {
		return IJK{1, 1, 1}
	}

	best := IJK{size, 1, 1}
	bestSum := size + 3
	for i := 1; i <= size>>1; i++ {
		if size%i != 0 {
			continue
		}
		jk := size / i
		for j := 1; j <= jk>>1; j++ {
			if jk%j != 0 {
				continue
			}
			k := jk / j
			if sum := i + j + k; sum < bestSum {
				bestSum = sum
				best = IJK{i, j, k}
			}
		}
	}
	return best
}

// Partitioning holds the global box, its factorization, and the per-rank subbox table. It
// is the KeyedObject committed by the application before rendering (the master builds it with
// New and commits it, per SPEC_FULL.md §4.7); a replica starts from NewEmpty, and its
// LocalCommit runs Setup, the equivalent of the original's local_commit hook.
type Partitioning struct {
	Global geom.Box
	Parts  IJK

	size  int
	boxes []geom.Box
}

// New returns a Partitioning over the given global box for a world of the given size,
// with Setup already applied.
func New(global geom.Box, size int) *Partitioning {
	p := &Partitioning{Global: global}
	p.Setup(size)
	return p
}

// NewEmpty returns a zero-value Partitioning pre-seeded with the world size, for use as a
// keyed.Registry factory: Deserialize only ever reads Global off the wire, so size has to
// be threaded in some other way for the LocalCommit-driven Setup call that follows.
func NewEmpty(size int) *Partitioning {
	return &Partitioning{size: size}
}

// ClassType implements keyed.Object.
func (*Partitioning) ClassType() string { return "Partitioning" }

// LocalCommit implements keyed.Object, computing the per-rank subbox table from the global
// box every process just received, mirroring the original's local_commit => setup() call.
func (p *Partitioning) LocalCommit() error {
	p.Setup(p.size)
	return nil
}

// Setup (re)computes the factorization and the per-rank subbox table. Called by New and by
// LocalCommit after every commit, mirroring the original's local_commit => setup().
func (p *Partitioning) Setup(size int) {
	p.size = size
	p.Parts = Factor(size)

	extent := p.Global.Size()
	step := geom.Vector{
		X: extent.X / float64(p.Parts.I),
		Y: extent.Y / float64(p.Parts.J),
		Z: extent.Z / float64(p.Parts.K),
	}

	p.boxes = make([]geom.Box, size)
	idx := 0
	oz := p.Global.Min.Z
	for k := 0; k < p.Parts.K; k++ {
		oy := p.Global.Min.Y
		for j := 0; j < p.Parts.J; j++ {
			ox := p.Global.Min.X
			for i := 0; i < p.Parts.I; i++ {
				p.boxes[idx] = geom.Box{
					Min: geom.Vector{X: ox, Y: oy, Z: oz},
					Max: geom.Vector{X: ox + step.X, Y: oy + step.Y, Z: oz + step.Z},
				}
				idx++
				ox += step.X
			}
			oy += step.Y
		}
		oz += step.Z
	}
}

// IJK2Rank maps a factor-space coordinate to a rank via row-major i->j->k scan.
func (p *Partitioning) IJK2Rank(i, j, k int) int {
	return i + j*p.Parts.I + k*p.Parts.I*p.Parts.J
}

// Rank2IJK maps a rank to its factor-space coordinate.
func (p *Partitioning) Rank2IJK(r int) (int, int, int) {
	i := r % p.Parts.I
	j := (r / p.Parts.I) % p.Parts.J
	k := r / (p.Parts.I * p.Parts.J)
	return i, j, k
}

// Box returns the subbox owned by rank r.
func (p *Partitioning) Box(r int) geom.Box {
	return p.boxes[r]
}

// Neighbors returns rank r's six face neighbors, indexed {-x,+x,-y,+y,-z,+z}; -1 marks an
// exterior face with no neighbor.
func (p *Partitioning) Neighbors(r int) [6]int {
	i, j, k := p.Rank2IJK(r)
	var n [6]int

	if i > 0 {
		n[0] = p.IJK2Rank(i-1, j, k)
	} else {
		n[0] = -1
	}
	if i < p.Parts.I-1 {
		n[1] = p.IJK2Rank(i+1, j, k)
	} else {
		n[1] = -1
	}
	if j > 0 {
		n[2] = p.IJK2Rank(i, j-1, k)
	} else {
		n[2] = -1
	}
	if j < p.Parts.J-1 {
		n[3] = p.IJK2Rank(i, j+1, k)
	} else {
		n[3] = -1
	}
	if k > 0 {
		n[4] = p.IJK2Rank(i, j, k-1)
	} else {
		n[4] = -1
	}
	if k < p.Parts.K-1 {
		n[5] = p.IJK2Rank(i, j, k+1)
	} else {
		n[5] = -1
	}
	return n
}

// PointOwner maps a point in world coordinates to the owning rank, or -1 if p lies outside
// the global box.
func (p *Partitioning) PointOwner(pt geom.Vector) int {
	if !p.Global.IsInInclusive(pt) {
		return -1
	}

	extent := p.Global.Size()
	step := geom.Vector{X: extent.X / float64(p.Parts.I), Y: extent.Y / float64(p.Parts.J), Z: extent.Z / float64(p.Parts.K)}

	rel := pt.Sub(p.Global.Min)
	i := int(rel.X / step.X)
	j := int(rel.Y / step.Y)
	k := int(rel.Z / step.Z)
	if i >= p.Parts.I {
		i = p.Parts.I - 1
	}
	if j >= p.Parts.J {
		j = p.Parts.J - 1
	}
	if k >= p.Parts.K {
		k = p.Parts.K - 1
	}
	return p.IJK2Rank(i, j, k)
}

// Neighbor returns the rank on the other side of the exit face that ray (origin, dir)
// leaves rank r's subbox through, or -1 at an exterior face.
func (p *Partitioning) Neighbor(r int, origin, dir geom.Vector) int {
	face := p.boxes[r].ExitFace(origin, dir)
	if face < 0 {
		return -1
	}
	return p.Neighbors(r)[face]
}

// SerialSize returns the number of bytes Serialize writes.
func (p *Partitioning) SerialSize() int {
	return p.Global.SerialSize()
}

// Serialize appends the global box to buf; the per-rank subbox table is recomputed by Setup
// on the receiving end rather than sent over the wire.
func (p *Partitioning) Serialize(buf []byte) []byte {
	return p.Global.Serialize(buf)
}

// Deserialize reads the global box from the front of buf. Callers must call Setup
// afterwards with the current world size, mirroring the original's local_commit => setup().
func (p *Partitioning) Deserialize(buf []byte) ([]byte, error) {
	rest, err := p.Global.Deserialize(buf)
	if err != nil {
		return rest, errors.Wrap(err, "partition: deserializing global box")
	}
	return rest, nil
}
