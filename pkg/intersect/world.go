// Package intersect finds, for every brush of a flattened model, the other
// brushes whose volumes touch or overlap it, and classifies each pair.
package intersect

import (
	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// MeshSource resolves brush mesh references. *graph.Scene implements it.
type MeshSource interface {
	Mesh(id graph.BrushMeshID) *graph.BrushMesh
}

// WorldBrush is a brush instance transformed into model space.
type WorldBrush struct {
	Brush     int // index into Tree.Brushes
	NodeIndex int
	Path      uint64
	Container graph.NodeID

	Mesh      *graph.BrushMesh
	Transform sdf.M44
	Vertices  []v3.Vec
	Planes    []graph.Plane // one per mesh polygon, outward facing
	Bounds    sdf.Box3

	// Mirrored is set when the transform flips handedness; polygon winding
	// must then be reversed to keep faces pointing outward.
	Mirrored bool

	// Key identifies the instance's shape and placement:
	// hash(mesh geometry hash, transform hash). Surface settings are not
	// part of it, so they never invalidate routing or clipping.
	Key uint64
}

// NewWorldBrush transforms brush b of tree into model space.
func NewWorldBrush(tree *compact.Tree, b int, mesh *graph.BrushMesh) WorldBrush {
	d := tree.Brushes[b]
	m := tree.Transforms[d.NodeIndex]

	verts := make([]v3.Vec, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		verts[i] = m.MulPosition(v)
	}

	o := m.MulPosition(v3.Vec{})
	ex := m.MulPosition(v3.Vec{X: 1}).Sub(o)
	ey := m.MulPosition(v3.Vec{Y: 1}).Sub(o)
	ez := m.MulPosition(v3.Vec{Z: 1}).Sub(o)
	mirrored := ex.Dot(ey.Cross(ez)) < 0

	planes := make([]graph.Plane, len(mesh.Polygons))
	for i, p := range mesh.Polygons {
		pts := make([]v3.Vec, len(p.Indices))
		for k, idx := range p.Indices {
			pts[k] = verts[idx]
		}
		pl, _ := graph.PlaneFromPoints(pts)
		if mirrored {
			pl = pl.Flip()
		}
		planes[i] = pl
	}

	bounds := sdf.Box3{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		bounds.Min = bounds.Min.Min(v)
		bounds.Max = bounds.Max.Max(v)
	}

	return WorldBrush{
		Brush:     b,
		NodeIndex: d.NodeIndex,
		Path:      d.Path,
		Container: d.Container,
		Mesh:      mesh,
		Transform: m,
		Vertices:  verts,
		Planes:    planes,
		Bounds:    bounds,
		Mirrored:  mirrored,
		Key:       graph.Combine(mesh.GeometryHash(), graph.HashMatrix(m)),
	}
}

// PolygonPoints returns the world-space points of polygon i wound
// counter-clockwise seen from outside.
func (w *WorldBrush) PolygonPoints(i int) []v3.Vec {
	idx := w.Mesh.Polygons[i].Indices
	pts := make([]v3.Vec, len(idx))
	for k, vi := range idx {
		if w.Mirrored {
			pts[len(idx)-1-k] = w.Vertices[vi]
		} else {
			pts[k] = w.Vertices[vi]
		}
	}
	return pts
}

// Contains reports whether p lies inside or on the brush, within eps.
func (w *WorldBrush) Contains(p v3.Vec, eps float64) bool {
	for _, pl := range w.Planes {
		if pl.Distance(p) > eps {
			return false
		}
	}
	return true
}

// ContainsStrict reports whether p lies inside the brush and farther than
// eps from every face.
func (w *WorldBrush) ContainsStrict(p v3.Vec, eps float64) bool {
	for _, pl := range w.Planes {
		if pl.Distance(p) > -eps {
			return false
		}
	}
	return true
}
