// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"math"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along the
// longest bounding box axis.
const DefaultMeshCells = 128

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// brushSDF is the field of a convex brush: the largest signed distance to
// any of its face planes. It is exact inside and a lower bound outside.
type brushSDF struct {
	planes []graph.Plane
	bb     sdf.Box3
}

func (b *brushSDF) Evaluate(p v3.Vec) float64 {
	d := math.Inf(-1)
	for _, pl := range b.planes {
		d = math.Max(d, pl.Distance(p))
	}
	return d
}

func (b *brushSDF) BoundingBox() sdf.Box3 { return b.bb }

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	// Cells is the marching cubes resolution used by ToMesh.
	Cells int
}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{Cells: DefaultMeshCells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	if s == nil {
		return nil
	}
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	if s == nil {
		return nil
	}
	return &sdfxSolid{s: s}
}

// Brush returns the solid bounded by the face planes of mesh, in mesh space.
func (k *SdfxKernel) Brush(mesh *graph.BrushMesh) kernel.Solid {
	if mesh == nil || len(mesh.Polygons) == 0 {
		return nil
	}
	return wrap(&brushSDF{planes: mesh.Planes(), bb: mesh.Bounds()})
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	if a == nil || b == nil {
		return a
	}
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	if a == nil || b == nil {
		return nil
	}
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Transform applies m to a solid.
func (k *SdfxKernel) Transform(s kernel.Solid, m sdf.M44) kernel.Solid {
	if s == nil {
		return nil
	}
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Evaluate returns the field value of s at p. The empty solid is +Inf
// everywhere.
func (k *SdfxKernel) Evaluate(s kernel.Solid, p v3.Vec) float64 {
	if s == nil {
		return math.Inf(1)
	}
	return unwrap(s).Evaluate(p)
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if s == nil {
		return &kernel.Mesh{}, nil
	}
	sdf3 := unwrap(s)

	cells := k.Cells
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
