package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func box(t *testing.T, k *SdfxKernel, x, y, z float64) kernel.Solid {
	t.Helper()
	m, err := graph.NewBoxMesh(v3.Vec{X: x, Y: y, Z: z}, graph.DefaultSurface())
	if err != nil {
		t.Fatalf("NewBoxMesh: %v", err)
	}
	return k.Brush(m)
}

func TestBrushField(t *testing.T) {
	k := New()
	b := box(t, k, 2, 2, 2)

	tests := []struct {
		p    v3.Vec
		want float64
	}{
		{v3.Vec{}, -1},
		{v3.Vec{X: 0.5}, -0.5},
		{v3.Vec{X: 1}, 0},
		{v3.Vec{X: 3}, 2},
		{v3.Vec{Y: -1.5}, 0.5},
	}
	for _, tt := range tests {
		if got := k.Evaluate(b, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Evaluate(%v) = %f, want %f", tt.p, got, tt.want)
		}
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	b := box(t, k, 100, 50, 25)
	min, max := b.BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{-50, -25, -12.5}
	expectMax := [3]float64{50, 25, 12.5}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestTransform(t *testing.T) {
	k := New()
	moved := k.Transform(box(t, k, 10, 10, 10), sdf.Translate3d(v3.Vec{X: 100, Y: 200, Z: 300}))

	min, max := moved.BoundingBox()
	const tol = 0.5
	expectMin := [3]float64{95, 195, 295}
	expectMax := [3]float64{105, 205, 305}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
	if got := k.Evaluate(moved, v3.Vec{X: 100, Y: 200, Z: 300}); got >= 0 {
		t.Errorf("centre of moved box evaluates to %f, want negative", got)
	}
}

func TestRotate(t *testing.T) {
	k := New()
	// A long box along X rotated 90 degrees around Z extends along Y instead.
	rotated := k.Transform(box(t, k, 100, 10, 10), sdf.RotateZ(math.Pi/2))
	min, max := rotated.BoundingBox()

	const tol = 1.0
	if ext := max[0] - min[0]; math.Abs(ext-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", ext)
	}
	if ext := max[1] - min[1]; math.Abs(ext-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", ext)
	}
}

func TestBooleans(t *testing.T) {
	k := New()
	a := box(t, k, 2, 2, 2)
	b := k.Transform(box(t, k, 2, 2, 2), sdf.Translate3d(v3.Vec{X: 1}))

	tests := []struct {
		name string
		s    kernel.Solid
		p    v3.Vec
		in   bool
	}{
		{"union left", k.Union(a, b), v3.Vec{X: -0.9}, true},
		{"union right", k.Union(a, b), v3.Vec{X: 1.9}, true},
		{"union outside", k.Union(a, b), v3.Vec{X: 2.5}, false},
		{"difference kept", k.Difference(a, b), v3.Vec{X: -0.5}, true},
		{"difference removed", k.Difference(a, b), v3.Vec{X: 0.5}, false},
		{"intersection shared", k.Intersection(a, b), v3.Vec{X: 0.5}, true},
		{"intersection only a", k.Intersection(a, b), v3.Vec{X: -0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.Evaluate(tt.s, tt.p) < 0
			if got != tt.in {
				t.Errorf("inside(%v) = %v, want %v", tt.p, got, tt.in)
			}
		})
	}
}

func TestEmptySolid(t *testing.T) {
	k := New()
	a := box(t, k, 1, 1, 1)

	if k.Brush(nil) != nil {
		t.Error("Brush(nil) should be the empty solid")
	}
	if k.Union(nil, a) != a || k.Union(a, nil) != a {
		t.Error("union with the empty solid should return the other operand")
	}
	if k.Difference(nil, a) != nil {
		t.Error("empty minus a should be empty")
	}
	if k.Difference(a, nil) != a {
		t.Error("a minus empty should be a")
	}
	if k.Intersection(a, nil) != nil || k.Intersection(nil, a) != nil {
		t.Error("intersection with the empty solid should be empty")
	}
	if k.Transform(nil, sdf.Identity3d()) != nil {
		t.Error("transformed empty solid should stay empty")
	}
	if !math.IsInf(k.Evaluate(nil, v3.Vec{}), 1) {
		t.Error("empty solid should evaluate to +Inf")
	}
	mesh, err := k.ToMesh(nil)
	if err != nil {
		t.Fatalf("ToMesh(nil): %v", err)
	}
	if !mesh.IsEmpty() {
		t.Error("empty solid should produce an empty mesh")
	}
}

func TestToMesh(t *testing.T) {
	k := &SdfxKernel{Cells: 32}
	b := box(t, k, 4, 2, 1)
	mesh, err := k.ToMesh(b)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
		t.Fatal("mesh is empty")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != mesh.TriangleCount()*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), mesh.TriangleCount()*3)
	}

	min, max := mesh.Bounds()
	const tol = 0.25
	want := [3]float32{2, 1, 0.5}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(max[i]-want[i])) > tol || math.Abs(float64(min[i]+want[i])) > tol {
			t.Errorf("axis %d bounds [%f, %f], want about ±%f", i, min[i], max[i], want[i])
		}
	}
}

func TestDifferenceAddsTriangles(t *testing.T) {
	k := &SdfxKernel{Cells: 32}
	a := box(t, k, 4, 4, 4)
	plain, err := k.ToMesh(a)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}
	holed, err := k.ToMesh(k.Difference(a, box(t, k, 1, 1, 6)))
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	if holed.TriangleCount() <= plain.TriangleCount() {
		t.Fatalf("difference (%d triangles) should have more triangles than box (%d triangles)",
			holed.TriangleCount(), plain.TriangleCount())
	}
}
