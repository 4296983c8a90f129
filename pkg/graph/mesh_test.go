package graph

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestBoxMesh(t *testing.T) {
	m := mustBox(t, v3.Vec{X: 2, Y: 4, Z: 6})

	if len(m.Vertices) != 8 || len(m.Polygons) != 6 {
		t.Fatalf("box has %d vertices, %d polygons", len(m.Vertices), len(m.Polygons))
	}
	b := m.Bounds()
	if b.Min != (v3.Vec{X: -1, Y: -2, Z: -3}) || b.Max != (v3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("bounds = %v", b)
	}

	wantNormals := []v3.Vec{
		{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1},
	}
	for i, pl := range m.Planes() {
		if pl.Normal.Sub(wantNormals[i]).Length() > 1e-9 {
			t.Errorf("plane %d normal = %v, want %v", i, pl.Normal, wantNormals[i])
		}
		if pl.Distance(v3.Vec{}) >= 0 {
			t.Errorf("origin is not behind plane %d", i)
		}
	}
}

func TestPrismMesh(t *testing.T) {
	m, err := NewPrismMesh(6, 1, 2, DefaultSurface())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 12 || len(m.Polygons) != 8 {
		t.Fatalf("prism has %d vertices, %d polygons", len(m.Vertices), len(m.Polygons))
	}
	top := m.Planes()[7]
	if math.Abs(top.Normal.Z-1) > 1e-9 || math.Abs(top.D-1) > 1e-9 {
		t.Errorf("top plane = %+v", top)
	}
}

func TestMeshErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"zero box", func() error { _, err := NewBoxMesh(v3.Vec{X: 1}, DefaultSurface()); return err }},
		{"two sided prism", func() error { _, err := NewPrismMesh(2, 1, 1, DefaultSurface()); return err }},
		{"too few vertices", func() error {
			_, err := NewBrushMesh([]v3.Vec{{}, {X: 1}, {Y: 1}}, nil)
			return err
		}},
		{"concave", func() error {
			m := mustBox(t, v3.Vec{X: 1, Y: 1, Z: 1})
			verts := append([]v3.Vec(nil), m.Vertices...)
			verts[7] = v3.Vec{X: 0.1, Y: 0.1, Z: 0.1} // dent one corner inward
			_, err := NewBrushMesh(verts, m.Polygons)
			return err
		}},
		{"index out of range", func() error {
			m := mustBox(t, v3.Vec{X: 1, Y: 1, Z: 1})
			polys := append([]Polygon(nil), m.Polygons...)
			polys[0] = Polygon{Indices: []int{0, 1, 99}}
			_, err := NewBrushMesh(m.Vertices, polys)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrInvalidMesh) {
				t.Errorf("err = %v, want ErrInvalidMesh", err)
			}
		})
	}
}

func TestMeshHash(t *testing.T) {
	a := mustBox(t, v3.Vec{X: 1, Y: 1, Z: 1})
	b := mustBox(t, v3.Vec{X: 1, Y: 1, Z: 1})
	if a.Hash() != b.Hash() {
		t.Error("identical meshes hash differently")
	}

	surf := DefaultSurface()
	surf.RenderMaterial = 5
	c, err := NewBoxMesh(v3.Vec{X: 1, Y: 1, Z: 1}, surf)
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash() == c.Hash() {
		t.Error("surface settings do not affect the hash")
	}
	if a.GeometryHash() != c.GeometryHash() {
		t.Error("surface settings affect the geometry hash")
	}
	bigger := mustBox(t, v3.Vec{X: 2, Y: 1, Z: 1})
	if a.GeometryHash() == bigger.GeometryHash() {
		t.Error("vertex positions do not affect the geometry hash")
	}
}

func TestTransformationHash(t *testing.T) {
	var nilT *Transformation
	if !nilT.IsIdentity() {
		t.Error("nil transformation should be identity")
	}
	if !Translation(v3.Vec{}).IsIdentity() {
		t.Error("zero translation should be identity")
	}
	a := Translation(v3.Vec{X: 1})
	b := Translation(v3.Vec{X: 1})
	if a.Hash() != b.Hash() {
		t.Error("equal transforms hash differently")
	}
	if a.Hash() == Translation(v3.Vec{Y: 1}).Hash() {
		t.Error("different transforms share a hash")
	}
	r := TRS(v3.Vec{}, v3.Vec{Z: 90}, v3.Vec{X: 1, Y: 1, Z: 1})
	p := r.Matrix().MulPosition(v3.Vec{X: 1})
	if math.Abs(p.Y-1) > 1e-9 || math.Abs(p.X) > 1e-9 {
		t.Errorf("rotateZ(90) * X = %v", p)
	}
}

func TestSurfaceVariants(t *testing.T) {
	s := SurfaceDescription{RenderMaterial: 2, PhysicsMaterial: 7, Usage: UsageDefault}
	got := s.Variants()
	want := []SurfaceVariant{{Kind: MeshRender, Material: 2}, {Kind: MeshCollider, Material: 7}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Variants = %v, want %v", got, want)
	}
	s.Usage = UsageNone
	if len(s.Variants()) != 0 {
		t.Error("UsageNone should contribute no variants")
	}
}
