package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PlaneEpsilon is the distance below which a point is considered to lie on a
// plane.
const PlaneEpsilon = 1e-5

// ---------------------------------------------------------------------------
// Surface description
// ---------------------------------------------------------------------------

// LayerUsage selects which mesh kinds a polygon contributes to.
type LayerUsage uint8

const (
	UsageRenderable LayerUsage = 1 << iota
	UsageCollidable

	UsageNone    LayerUsage = 0
	UsageDefault            = UsageRenderable | UsageCollidable
)

// UVMapping projects a position onto texture space:
// u = p.U + OffsetU, v = p.V + OffsetV. A zero mapping picks axes from the
// polygon normal.
type UVMapping struct {
	U       v3.Vec
	V       v3.Vec
	OffsetU float64
	OffsetV float64
}

// IsZero reports whether the mapping is the automatic planar mapping.
func (m UVMapping) IsZero() bool {
	return m == UVMapping{}
}

func (m UVMapping) Hash() uint64 {
	return NewHashWriter().Vec(m.U).Vec(m.V).Float64(m.OffsetU).Float64(m.OffsetV).Sum()
}

// Resolve returns the mapping to use for a polygon with the given normal.
func (m UVMapping) Resolve(normal v3.Vec) UVMapping {
	if !m.IsZero() {
		return m
	}
	ax, ay, az := math.Abs(normal.X), math.Abs(normal.Y), math.Abs(normal.Z)
	switch {
	case ax >= ay && ax >= az:
		return UVMapping{U: v3.Vec{Y: 1}, V: v3.Vec{Z: 1}}
	case ay >= az:
		return UVMapping{U: v3.Vec{X: 1}, V: v3.Vec{Z: 1}}
	default:
		return UVMapping{U: v3.Vec{X: 1}, V: v3.Vec{Y: 1}}
	}
}

// SurfaceDescription carries the per-polygon surface settings.
type SurfaceDescription struct {
	RenderMaterial  uint32
	PhysicsMaterial uint32
	Usage           LayerUsage
	UV              UVMapping
	LightmapScale   float64
}

// DefaultSurface renders and collides with material 0.
func DefaultSurface() SurfaceDescription {
	return SurfaceDescription{Usage: UsageDefault, LightmapScale: 1}
}

func (s SurfaceDescription) Hash() uint64 {
	return NewHashWriter().
		Uint32(s.RenderMaterial).
		Uint32(s.PhysicsMaterial).
		Uint8(uint8(s.Usage)).
		Uint64(s.UV.Hash()).
		Float64(s.LightmapScale).
		Sum()
}

// Variants lists the surface variants this description contributes to.
func (s SurfaceDescription) Variants() []SurfaceVariant {
	var out []SurfaceVariant
	if s.Usage&UsageRenderable != 0 {
		out = append(out, SurfaceVariant{Kind: MeshRender, Material: s.RenderMaterial})
	}
	if s.Usage&UsageCollidable != 0 {
		out = append(out, SurfaceVariant{Kind: MeshCollider, Material: s.PhysicsMaterial})
	}
	return out
}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

// Plane is the set of points p with Normal.p == D. Normal points out of the
// solid.
type Plane struct {
	Normal v3.Vec
	D      float64
}

// Distance returns the signed distance of p from the plane (positive outside).
func (pl Plane) Distance(p v3.Vec) float64 {
	return pl.Normal.Dot(p) - pl.D
}

// Flip returns the plane facing the opposite way.
func (pl Plane) Flip() Plane {
	return Plane{Normal: pl.Normal.Neg(), D: -pl.D}
}

// PlaneFromPoints computes the plane of a polygon with Newell's method.
// Winding is counter-clockwise seen from outside.
func PlaneFromPoints(pts []v3.Vec) (Plane, bool) {
	var n, centroid v3.Vec
	for i, cur := range pts {
		next := pts[(i+1)%len(pts)]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
		centroid = centroid.Add(cur)
	}
	l := n.Length()
	if len(pts) < 3 || l < PlaneEpsilon {
		return Plane{}, false
	}
	n = n.DivScalar(l)
	centroid = centroid.DivScalar(float64(len(pts)))
	return Plane{Normal: n, D: n.Dot(centroid)}, true
}

// Polygon is one face of a brush mesh.
type Polygon struct {
	Indices []int
	Surface SurfaceDescription
}

// BrushMesh is a closed convex solid. It is immutable after construction;
// derived data (planes, bounds, hash) is computed once in NewBrushMesh.
type BrushMesh struct {
	Vertices []v3.Vec
	Polygons []Polygon

	planes   []Plane
	bounds   sdf.Box3
	geomHash uint64
	hash     uint64
	built    bool
}

// ErrInvalidMesh is returned for meshes that are not closed convex solids.
var ErrInvalidMesh = errors.New("graph: invalid brush mesh")

// NewBrushMesh builds a mesh from vertices and polygons and validates it.
func NewBrushMesh(vertices []v3.Vec, polygons []Polygon) (*BrushMesh, error) {
	m := &BrushMesh{Vertices: vertices, Polygons: polygons}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.planes = make([]Plane, len(polygons))
	for i, p := range polygons {
		m.planes[i], _ = PlaneFromPoints(m.polygonPoints(p))
	}
	m.bounds = boundsOf(vertices)
	m.geomHash = m.geometryHash()
	m.hash = m.contentHash()
	m.built = true
	return m, nil
}

// Built reports whether m was validated by NewBrushMesh. Meshes assembled as
// struct literals have no planes or bounds and cannot be evaluated.
func (m *BrushMesh) Built() bool { return m != nil && m.built }

func (m *BrushMesh) polygonPoints(p Polygon) []v3.Vec {
	pts := make([]v3.Vec, len(p.Indices))
	for i, idx := range p.Indices {
		pts[i] = m.Vertices[idx]
	}
	return pts
}

// PolygonPoints returns the vertex positions of polygon i.
func (m *BrushMesh) PolygonPoints(i int) []v3.Vec {
	return m.polygonPoints(m.Polygons[i])
}

// Planes returns the polygon planes, one per polygon.
func (m *BrushMesh) Planes() []Plane { return m.planes }

// Bounds returns the local-space bounding box.
func (m *BrushMesh) Bounds() sdf.Box3 { return m.bounds }

// Hash returns the content hash of the mesh.
func (m *BrushMesh) Hash() uint64 {
	if m == nil {
		return 0
	}
	return m.hash
}

// GeometryHash hashes vertices and polygon indices only; surface settings
// do not affect it.
func (m *BrushMesh) GeometryHash() uint64 {
	if m == nil {
		return 0
	}
	return m.geomHash
}

func (m *BrushMesh) geometryHash() uint64 {
	w := NewHashWriter()
	w.Int(len(m.Vertices))
	for _, v := range m.Vertices {
		w.Vec(v)
	}
	w.Int(len(m.Polygons))
	for _, p := range m.Polygons {
		w.Int(len(p.Indices))
		for _, idx := range p.Indices {
			w.Int(idx)
		}
	}
	return w.Sum()
}

func (m *BrushMesh) contentHash() uint64 {
	w := NewHashWriter().Uint64(m.geomHash)
	for _, p := range m.Polygons {
		w.Uint64(p.Surface.Hash())
	}
	return w.Sum()
}

// Validate checks index ranges, planarity and convexity.
func (m *BrushMesh) Validate() error {
	if len(m.Vertices) < 4 {
		return fmt.Errorf("%w: %d vertices, need at least 4", ErrInvalidMesh, len(m.Vertices))
	}
	if len(m.Polygons) < 4 {
		return fmt.Errorf("%w: %d polygons, need at least 4", ErrInvalidMesh, len(m.Polygons))
	}
	for i, p := range m.Polygons {
		if len(p.Indices) < 3 {
			return fmt.Errorf("%w: polygon %d has %d vertices", ErrInvalidMesh, i, len(p.Indices))
		}
		for _, idx := range p.Indices {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("%w: polygon %d index %d out of range", ErrInvalidMesh, i, idx)
			}
		}
		pts := m.polygonPoints(p)
		pl, ok := PlaneFromPoints(pts)
		if !ok {
			return fmt.Errorf("%w: polygon %d is degenerate", ErrInvalidMesh, i)
		}
		for _, pt := range pts {
			if math.Abs(pl.Distance(pt)) > PlaneEpsilon {
				return fmt.Errorf("%w: polygon %d is not planar", ErrInvalidMesh, i)
			}
		}
		for j, v := range m.Vertices {
			if pl.Distance(v) > PlaneEpsilon {
				return fmt.Errorf("%w: vertex %d lies outside polygon %d", ErrInvalidMesh, j, i)
			}
		}
	}
	return nil
}

func boundsOf(pts []v3.Vec) sdf.Box3 {
	if len(pts) == 0 {
		return sdf.Box3{}
	}
	b := sdf.Box3{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// boxFaces lists the box polygons over vertex index x + 2y + 4z, wound
// counter-clockwise seen from outside: -X, +X, -Y, +Y, -Z, +Z.
var boxFaces = [6][4]int{
	{0, 4, 6, 2},
	{1, 3, 7, 5},
	{0, 1, 5, 4},
	{2, 6, 7, 3},
	{0, 2, 3, 1},
	{4, 5, 7, 6},
}

// NewBoxMesh returns an axis-aligned box of the given size centered on the
// origin.
func NewBoxMesh(size v3.Vec, surface SurfaceDescription) (*BrushMesh, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("%w: box size must be positive, got %v", ErrInvalidMesh, size)
	}
	h := size.MulScalar(0.5)
	verts := make([]v3.Vec, 8)
	for i := range verts {
		v := h.Neg()
		if i&1 != 0 {
			v.X = h.X
		}
		if i&2 != 0 {
			v.Y = h.Y
		}
		if i&4 != 0 {
			v.Z = h.Z
		}
		verts[i] = v
	}
	polys := make([]Polygon, len(boxFaces))
	for i, f := range boxFaces {
		polys[i] = Polygon{Indices: []int{f[0], f[1], f[2], f[3]}, Surface: surface}
	}
	return NewBrushMesh(verts, polys)
}

// NewPrismMesh returns a right prism with a regular n-gon cross-section of
// the given circumradius, extruded along Z and centered on the origin.
func NewPrismMesh(sides int, radius, height float64, surface SurfaceDescription) (*BrushMesh, error) {
	if sides < 3 {
		return nil, fmt.Errorf("%w: prism needs at least 3 sides, got %d", ErrInvalidMesh, sides)
	}
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: prism radius and height must be positive", ErrInvalidMesh)
	}
	verts := make([]v3.Vec, 2*sides)
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		x, y := radius*math.Cos(a), radius*math.Sin(a)
		verts[i] = v3.Vec{X: x, Y: y, Z: -height / 2}
		verts[i+sides] = v3.Vec{X: x, Y: y, Z: height / 2}
	}
	polys := make([]Polygon, 0, sides+2)
	for i := 0; i < sides; i++ {
		j := (i + 1) % sides
		polys = append(polys, Polygon{Indices: []int{i, j, j + sides, i + sides}, Surface: surface})
	}
	bottom := make([]int, sides)
	top := make([]int, sides)
	for i := 0; i < sides; i++ {
		bottom[i] = sides - 1 - i
		top[i] = i + sides
	}
	polys = append(polys,
		Polygon{Indices: bottom, Surface: surface},
		Polygon{Indices: top, Surface: surface},
	)
	return NewBrushMesh(verts, polys)
}
