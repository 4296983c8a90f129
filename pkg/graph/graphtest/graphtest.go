// Package graphtest provides scene builders for tests.
package graphtest

import (
	"testing"

	"github.com/chazu/brushcsg/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// RenderVariant is the single variant declared by models built with Model.
var RenderVariant = graph.SurfaceVariant{Kind: graph.MeshRender}

// RenderSurface renders with material 0 and does not collide.
func RenderSurface() graph.SurfaceDescription {
	return graph.SurfaceDescription{Usage: graph.UsageRenderable, LightmapScale: 1}
}

// Model adds a model declaring RenderVariant.
func Model(s *graph.Scene, name string) graph.NodeID {
	return s.AddModel(name, graph.ModelData{Variants: []graph.SurfaceVariant{RenderVariant}})
}

// Box adds a brush with a render-only box mesh of the given size.
func Box(t testing.TB, s *graph.Scene, name string, size v3.Vec) graph.NodeID {
	t.Helper()
	m, err := graph.NewBoxMesh(size, RenderSurface())
	if err != nil {
		t.Fatalf("graphtest: box %s: %v", name, err)
	}
	return s.AddBrush(name, s.AddMesh(m))
}

// Cube adds a brush with a cube mesh of edge length size.
func Cube(t testing.TB, s *graph.Scene, name string, size float64) graph.NodeID {
	t.Helper()
	return Box(t, s, name, v3.Vec{X: size, Y: size, Z: size})
}

// Attach adds child under parent, translated by offset.
func Attach(t testing.TB, s *graph.Scene, parent, child graph.NodeID, op graph.Operation, offset v3.Vec) {
	t.Helper()
	var tr *graph.Transformation
	if offset != (v3.Vec{}) {
		tr = graph.Translation(offset)
	}
	if err := s.AddChild(parent, child, op, tr); err != nil {
		t.Fatalf("graphtest: attach %s to %s: %v", child, parent, err)
	}
}

// AMinusB builds a model with a 2-unit cube A and a 1-unit cube B subtracted
// from it, B shifted by offset.
func AMinusB(t testing.TB, offset v3.Vec) (s *graph.Scene, model, a, b graph.NodeID) {
	t.Helper()
	s = graph.NewScene()
	model = Model(s, "model")
	a = Cube(t, s, "a", 2)
	b = Cube(t, s, "b", 1)
	Attach(t, s, model, a, graph.Additive, v3.Vec{})
	Attach(t, s, model, b, graph.Subtractive, offset)
	return s, model, a, b
}
