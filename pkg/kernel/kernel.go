// Package kernel defines the geometry collaborators of the CSG core: the
// Clipper that splits and classifies brush polygons, and the solid-modeling
// Kernel used for reference evaluation and previews. Implementations live in
// the planar and sdfx subpackages.
package kernel

import (
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract solid-modeling interface. A nil Solid is the empty
// solid; boolean operations accept and may return nil.
type Kernel interface {
	// Primitives
	Brush(mesh *graph.BrushMesh) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Transform(s Solid, m sdf.M44) Solid

	// Queries
	Evaluate(s Solid, p v3.Vec) float64 // negative inside, positive outside

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
