package scene

import (
	"log"
	"math"
	"path/filepath"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/mwindels/gwob"
	"github.com/mwindels/rtreego"
	"github.com/pkg/errors"
)

const boundEpsilon = 0.0001

// Face is the subset of a mesh face's behavior internal/intersect needs: its geometry and
// material, without exposing the vertex-index bookkeeping meshFace uses internally.
type Face interface {
	Triangle() geom.Triangle
	Material() Material
}

// meshFace indexes a mesh's vertices, vertex normals, and material for one triangular face.
// It implements rtreego.Spatial so a *Mesh's R-tree can be queried directly for faces whose
// bounding box overlaps a ray's path, mirroring the teacher's shared/state.face.
type meshFace struct {
	verts     [3]uint32
	vertNorms [3]uint32
	mat       uint32
	mesh      *Mesh
}

// Bounds implements rtreego.Spatial, adapted verbatim from the teacher's face.Bounds.
func (f meshFace) Bounds() *rtreego.Rect {
	v0, v1, v2 := f.mesh.vertices[f.verts[0]], f.mesh.vertices[f.verts[1]], f.mesh.vertices[f.verts[2]]

	xMin, xMax := minOf(v0.X, v1.X, v2.X), maxOf(v0.X, v1.X, v2.X)
	yMin, yMax := minOf(v0.Y, v1.Y, v2.Y), maxOf(v0.Y, v1.Y, v2.Y)
	zMin, zMax := minOf(v0.Z, v1.Z, v2.Z), maxOf(v0.Z, v1.Z, v2.Z)

	bbox, err := rtreego.NewRect(rtreego.Point{xMin, yMin, zMin},
		[]float64{math.Max(xMax-xMin, boundEpsilon), math.Max(yMax-yMin, boundEpsilon), math.Max(zMax-zMin, boundEpsilon)})
	if err != nil {
		panic(err)
	}
	return bbox
}

// Triangle returns the geometric triangle described by this face, with vertex normals
// attached if the mesh carries them, for use by internal/intersect.
func (f meshFace) Triangle() geom.Triangle {
	t := geom.Triangle{
		P1: f.mesh.vertices[f.verts[0]],
		P2: f.mesh.vertices[f.verts[1]],
		P3: f.mesh.vertices[f.verts[2]],
	}
	if len(f.mesh.vertexNormals) > 0 {
		t.N1 = f.mesh.vertexNormals[f.vertNorms[0]]
		t.N2 = f.mesh.vertexNormals[f.vertNorms[1]]
		t.N3 = f.mesh.vertexNormals[f.vertNorms[2]]
	}
	return t
}

// Material returns the material assigned to this face.
func (f meshFace) Material() Material { return f.mesh.materials[f.mat] }

// Mesh is a triangulated polygonal mesh with per-face materials, indexed by an R-tree for
// fast ray/face culling. It is the Dataset KeyedObject named in SPEC_FULL.md §3.1, adapted
// from the teacher's shared/state.Mesh (which used gob over TCP); here Serialize/Deserialize
// follow the keyed-object wire contract instead, and LocalCommit rebuilds the R-tree the way
// the teacher's UnmarshalBinary did.
type Mesh struct {
	vertices      []geom.Vector
	vertexNormals []geom.Vector
	rawFaces      []meshFace
	materials     []Material

	tree *rtreego.Rtree
}

// FaceDef describes one triangular face by index into a NewMesh call's vertex, vertex
// normal, and material slices.
type FaceDef struct {
	Verts     [3]uint32
	VertNorms [3]uint32
	Mat       uint32
}

// NewMesh builds a Mesh directly from in-memory geometry, for procedurally generated
// datasets (test scenes, primitives) that don't come from a Wavefront OBJ file.
func NewMesh(vertices, vertexNormals []geom.Vector, faces []FaceDef, materials []Material) *Mesh {
	m := &Mesh{vertices: vertices, vertexNormals: vertexNormals, materials: materials}
	m.rawFaces = make([]meshFace, len(faces))
	for i, f := range faces {
		m.rawFaces[i] = meshFace{verts: f.Verts, vertNorms: f.VertNorms, mat: f.Mat, mesh: m}
	}
	m.buildTree()
	return m
}

// MeshFromFile loads a mesh from a Wavefront OBJ file (and its associated material
// library, if any), adapted from the teacher's shared/state.MeshFromFile.
func MeshFromFile(path string) (*Mesh, error) {
	options := gwob.ObjParserOptions{LogStats: true, Logger: func(s string) { log.Println(s) }, IgnoreNormals: false}

	inputMesh, err := gwob.NewObjFromFile(path, &options)
	if err != nil {
		return nil, errors.Wrapf(err, "scene: reading mesh %s", path)
	}

	matlib := gwob.NewMaterialLib()
	if len(inputMesh.Mtllib) > 0 {
		matlib, err = gwob.ReadMaterialLibFromFile(filepath.Join(filepath.Dir(path), inputMesh.Mtllib), &options)
		if err != nil {
			matlib, err = gwob.ReadMaterialLibFromFile(inputMesh.Mtllib, &options)
			if err != nil {
				return nil, errors.Wrapf(err, "scene: reading material library for %s", path)
			}
		}
	}

	vertexStride := inputMesh.StrideSize / 4
	vertexOffset := inputMesh.StrideOffsetPosition / 4
	vertexNormalOffset := inputMesh.StrideOffsetNormal / 4

	m := &Mesh{
		vertices:  make([]geom.Vector, 0, len(inputMesh.Coord)/vertexStride),
		materials: make([]Material, 0, len(inputMesh.Groups)),
	}
	if inputMesh.NormCoordFound {
		m.vertexNormals = make([]geom.Vector, 0, len(inputMesh.Coord)/vertexStride)
	}

	vertexMap := make(map[geom.Vector]uint32)
	vertexNormalMap := make(map[geom.Vector]uint32)
	materialMap := make(map[Material]uint32)
	for _, g := range inputMesh.Groups {
		mat := Material{Ka: colour.NewRGB(0x10, 0x10, 0x10), Kd: colour.NewRGB(0xFF, 0xFF, 0xFF), Ks: colour.NewRGB(0, 0, 0), Ns: 0}
		if gMat, ok := matlib.Lib[g.Usemtl]; ok {
			mat = Material{
				Ka: colour.NewRGBFromFloats(gMat.Ka[0], gMat.Ka[1], gMat.Ka[2]),
				Kd: colour.NewRGBFromFloats(gMat.Kd[0], gMat.Kd[1], gMat.Kd[2]),
				Ks: colour.NewRGBFromFloats(gMat.Ks[0], gMat.Ks[1], gMat.Ks[2]),
				Ns: float64(gMat.Ns),
			}
		}

		matIndex, ok := materialMap[mat]
		if !ok {
			matIndex = uint32(len(m.materials))
			m.materials = append(m.materials, mat)
			materialMap[mat] = matIndex
		}

		for f := 0; f < g.IndexCount/3; f++ {
			face := meshFace{mat: matIndex, mesh: m}
			for v := 0; v < 3; v++ {
				vIndex := g.IndexBegin + (3*f + v)
				base := vertexStride * inputMesh.Indices[vIndex]
				vertex := geom.Vector{
					X: inputMesh.Coord64(base + vertexOffset),
					Y: inputMesh.Coord64(base + vertexOffset + 1),
					Z: inputMesh.Coord64(base + vertexOffset + 2),
				}
				if idx, ok := vertexMap[vertex]; ok {
					face.verts[v] = idx
				} else {
					idx = uint32(len(m.vertices))
					vertexMap[vertex] = idx
					m.vertices = append(m.vertices, vertex)
					face.verts[v] = idx
				}

				if inputMesh.NormCoordFound {
					normal := geom.Vector{
						X: inputMesh.Coord64(base + vertexNormalOffset),
						Y: inputMesh.Coord64(base + vertexNormalOffset + 1),
						Z: inputMesh.Coord64(base + vertexNormalOffset + 2),
					}
					if idx, ok := vertexNormalMap[normal]; ok {
						face.vertNorms[v] = idx
					} else {
						idx = uint32(len(m.vertexNormals))
						vertexNormalMap[normal] = idx
						m.vertexNormals = append(m.vertexNormals, normal.Norm())
						face.vertNorms[v] = idx
					}
				}
			}
			m.rawFaces = append(m.rawFaces, face)
		}
	}

	m.buildTree()
	return m, nil
}

func (m *Mesh) buildTree() {
	m.tree = rtreego.NewTree(3, 2, 5)
	for _, f := range m.rawFaces {
		m.tree.Insert(f)
	}
}

// Tree returns the mesh's R-tree of faces, for use by internal/intersect.
func (m *Mesh) Tree() *rtreego.Rtree { return m.tree }

// BoundingBox returns the smallest axis-aligned box enclosing every vertex in the mesh, for
// committing as a Visualization's GlobalBox (SPEC_FULL.md §4.7). Computed directly from the
// vertex list rather than the R-tree, since the R-tree's root bound isn't exposed by
// rtreego's public API.
func (m *Mesh) BoundingBox() geom.Box {
	if len(m.vertices) == 0 {
		return geom.Box{}
	}
	box := geom.Box{Min: m.vertices[0], Max: m.vertices[0]}
	for _, v := range m.vertices[1:] {
		box.Min = geom.Vector{X: math.Min(box.Min.X, v.X), Y: math.Min(box.Min.Y, v.Y), Z: math.Min(box.Min.Z, v.Z)}
		box.Max = geom.Vector{X: math.Max(box.Max.X, v.X), Y: math.Max(box.Max.Y, v.Y), Z: math.Max(box.Max.Z, v.Z)}
	}
	return box
}

// ClassType implements keyed.Object.
func (*Mesh) ClassType() string { return "Dataset" }

// SerialSize implements keyed.Object.
func (m *Mesh) SerialSize() int {
	size := 4 + len(m.vertices)*24
	size += 4 + len(m.vertexNormals)*24
	size += 4 + len(m.rawFaces)*(3*4+3*4+4)
	size += 4 + len(m.materials)*materialSerialSize()
	size += 1 // hasNormals flag
	return size
}

// Serialize implements keyed.Object.
func (m *Mesh) Serialize(buf []byte) []byte {
	buf = wire.PutBool(buf, len(m.vertexNormals) > 0)

	buf = wire.PutUint32(buf, uint32(len(m.vertices)))
	for _, v := range m.vertices {
		buf = wire.PutFloat64(buf, v.X)
		buf = wire.PutFloat64(buf, v.Y)
		buf = wire.PutFloat64(buf, v.Z)
	}

	buf = wire.PutUint32(buf, uint32(len(m.vertexNormals)))
	for _, v := range m.vertexNormals {
		buf = wire.PutFloat64(buf, v.X)
		buf = wire.PutFloat64(buf, v.Y)
		buf = wire.PutFloat64(buf, v.Z)
	}

	buf = wire.PutUint32(buf, uint32(len(m.rawFaces)))
	for _, f := range m.rawFaces {
		buf = wire.PutUint32(buf, f.verts[0])
		buf = wire.PutUint32(buf, f.verts[1])
		buf = wire.PutUint32(buf, f.verts[2])
		buf = wire.PutUint32(buf, f.vertNorms[0])
		buf = wire.PutUint32(buf, f.vertNorms[1])
		buf = wire.PutUint32(buf, f.vertNorms[2])
		buf = wire.PutUint32(buf, f.mat)
	}

	buf = wire.PutUint32(buf, uint32(len(m.materials)))
	for _, mat := range m.materials {
		buf = putMaterial(buf, mat)
	}

	return buf
}

// Deserialize implements keyed.Object. The R-tree is not rebuilt here; LocalCommit does
// that, mirroring the teacher's UnmarshalBinary/commit split.
func (m *Mesh) Deserialize(buf []byte) ([]byte, error) {
	hasNormals, buf, err := wire.GetBool(buf)
	if err != nil {
		return buf, errors.Wrap(err, "scene: deserializing mesh normals flag")
	}

	var n uint32
	if n, buf, err = wire.GetUint32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing mesh vertex count")
	}
	m.vertices = make([]geom.Vector, n)
	for i := range m.vertices {
		if m.vertices[i].X, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
		if m.vertices[i].Y, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
		if m.vertices[i].Z, buf, err = wire.GetFloat64(buf); err != nil {
			return buf, err
		}
	}

	if n, buf, err = wire.GetUint32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing mesh normal count")
	}
	if hasNormals {
		m.vertexNormals = make([]geom.Vector, n)
		for i := range m.vertexNormals {
			if m.vertexNormals[i].X, buf, err = wire.GetFloat64(buf); err != nil {
				return buf, err
			}
			if m.vertexNormals[i].Y, buf, err = wire.GetFloat64(buf); err != nil {
				return buf, err
			}
			if m.vertexNormals[i].Z, buf, err = wire.GetFloat64(buf); err != nil {
				return buf, err
			}
		}
	} else {
		m.vertexNormals = nil
	}

	var fn uint32
	if fn, buf, err = wire.GetUint32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing mesh face count")
	}
	m.rawFaces = make([]meshFace, fn)
	for i := range m.rawFaces {
		f := meshFace{mesh: m}
		if f.verts[0], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.verts[1], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.verts[2], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.vertNorms[0], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.vertNorms[1], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.vertNorms[2], buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		if f.mat, buf, err = wire.GetUint32(buf); err != nil {
			return buf, err
		}
		m.rawFaces[i] = f
	}

	var mn uint32
	if mn, buf, err = wire.GetUint32(buf); err != nil {
		return buf, errors.Wrap(err, "scene: deserializing mesh material count")
	}
	m.materials = make([]Material, mn)
	for i := range m.materials {
		if m.materials[i], buf, err = getMaterial(buf); err != nil {
			return buf, err
		}
	}

	return buf, nil
}

// LocalCommit implements keyed.Object, rebuilding the R-tree every rank needs for
// intersection queries once the mesh's raw geometry has arrived.
func (m *Mesh) LocalCommit() error {
	m.buildTree()
	return nil
}

func minOf(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
func maxOf(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }
