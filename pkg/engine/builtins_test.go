package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/brushcsg/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func mustEvaluate(t *testing.T, source string) *graph.Scene {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil scene")
	}
	return s
}

func mustLookup(t *testing.T, s *graph.Scene, name string) *graph.Node {
	t.Helper()
	n := s.Lookup(name)
	if n == nil {
		t.Fatalf("expected node named %q", name)
	}
	return n
}

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(surface :material 2)`,
			expect: `(surface "__kw_material" 2)`,
		},
		{
			name:   "multiple keywords",
			input:  `(prism :sides 6 :radius 1)`,
			expect: `(prism "__kw_sides" 6 "__kw_radius" 1)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def wall-size 3)`,
			expect: `(def wall_size 3)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -1 0 -0.5)`,
			expect: `(vec3 -1 0 -0.5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:usage-kind`,
			expect: `"__kw_usage-kind"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Brushes and meshes
// ---------------------------------------------------------------------------

func TestSimpleBrush(t *testing.T) {
	s := mustEvaluate(t, `
(brush "slab" (box :size (vec3 4 2 1)
                   :surface (surface :material 3 :physics 1 :usage :render)))
`)
	if s.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", s.NodeCount())
	}
	slab := mustLookup(t, s, "slab")
	if slab.Kind != graph.KindBrush {
		t.Errorf("expected brush, got %s", slab.Kind)
	}
	mesh := s.BrushMesh(slab)
	if mesh == nil {
		t.Fatal("brush has no mesh")
	}
	b := mesh.Bounds()
	if b.Max != (v3.Vec{X: 2, Y: 1, Z: 0.5}) {
		t.Errorf("bounds max = %v", b.Max)
	}
	surf := mesh.Polygons[0].Surface
	if surf.RenderMaterial != 3 || surf.PhysicsMaterial != 1 || surf.Usage != graph.UsageRenderable {
		t.Errorf("surface = %+v", surf)
	}
}

func TestPrismBrush(t *testing.T) {
	s := mustEvaluate(t, `(brush "post" (prism :sides 6 :radius 0.5 :height 2))`)
	mesh := s.BrushMesh(mustLookup(t, s, "post"))
	if mesh == nil || len(mesh.Polygons) != 8 {
		t.Fatalf("expected an 8-sided prism mesh, got %+v", mesh)
	}
	if mesh.Polygons[0].Surface != graph.DefaultSurface() {
		t.Errorf("expected the default surface, got %+v", mesh.Polygons[0].Surface)
	}
}

func TestVariableReference(t *testing.T) {
	s := mustEvaluate(t, `
(def h 3)
(def stone (surface :material 7))
(brush "pillar" (box :size (vec3 1 1 h) :surface stone))
`)
	mesh := s.BrushMesh(mustLookup(t, s, "pillar"))
	if got := mesh.Bounds().Max.Z; got != 1.5 {
		t.Errorf("expected half height 1.5 (from variable), got %f", got)
	}
	if got := mesh.Polygons[0].Surface.RenderMaterial; got != 7 {
		t.Errorf("expected material 7 (from variable), got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func TestModelWithOperations(t *testing.T) {
	s := mustEvaluate(t, `
(def cube (box :size (vec3 2 2 2)))
(model "room" :variants (list (render 0) (collider 0) (render 0))
  (brush "a" cube)
  (subtract (brush "b" cube) :at (vec3 1 0 0))
  (intersect (place (brush "c" cube) :scale (vec3 2 2 2))))
`)
	room := mustLookup(t, s, "room")
	if room.Kind != graph.KindModel {
		t.Fatalf("expected model, got %s", room.Kind)
	}
	if models := s.Models(); len(models) != 1 || models[0] != room.ID {
		t.Errorf("Models = %v", models)
	}

	d := room.Data.(graph.ModelData)
	if len(d.Variants) != 2 {
		t.Errorf("expected duplicate variants removed, got %v", d.Variants)
	}
	if d.SubModelCount != 0 {
		t.Errorf("expected no sub-models, got %d", d.SubModelCount)
	}

	if len(room.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(room.Children))
	}
	wantOps := []graph.Operation{graph.Additive, graph.Subtractive, graph.Intersecting}
	for i, c := range room.Children {
		if c.Operation != wantOps[i] {
			t.Errorf("child %d operation = %s, want %s", i, c.Operation, wantOps[i])
		}
	}
	if room.Children[0].Transform != nil {
		t.Error("plain child should carry no transform")
	}
	p := room.Children[1].Transform.Matrix().MulPosition(v3.Vec{})
	if p != (v3.Vec{X: 1}) {
		t.Errorf("subtracted child origin = %v, want (1,0,0)", p)
	}
	q := room.Children[2].Transform.Matrix().MulPosition(v3.Vec{X: 1})
	if math.Abs(q.X-2) > 1e-12 {
		t.Errorf("scaled child maps (1,0,0) to %v", q)
	}
}

func TestRotatePlacement(t *testing.T) {
	s := mustEvaluate(t, `
(model "m" :variants (list (render 0))
  (place (brush "a" (box :size (vec3 4 1 1))) :rotate (vec3 0 0 90) :at (vec3 0 0 5)))
`)
	c := mustLookup(t, s, "m").Children[0]
	p := c.Transform.Matrix().MulPosition(v3.Vec{X: 1})
	if math.Abs(p.Y-1) > 1e-9 || math.Abs(p.X) > 1e-9 || math.Abs(p.Z-5) > 1e-9 {
		t.Errorf("rotated placement maps (1,0,0) to %v", p)
	}
}

func TestNestedContainers(t *testing.T) {
	s := mustEvaluate(t, `
(def unit (box :size (vec3 1 1 1)))
(def door (submodel "door" :variants (list (render 1)) (brush "leaf" unit)))
(model "house" :variants (list (render 0))
  (brush "wall" (box :size (vec3 6 1 3)))
  (subtract (composite "opening"
              (brush "frame" unit)
              (intersect (brush "sill" unit) :at (vec3 0 0 -0.5))))
  (add door :at (vec3 0 0.5 0))
  (add door :at (vec3 2 0.5 0)))
`)
	house := mustLookup(t, s, "house")
	if got := house.Data.(graph.ModelData).SubModelCount; got != 2 {
		t.Errorf("expected 2 sub-model instances, got %d", got)
	}

	door := mustLookup(t, s, "door")
	if door.Kind != graph.KindSubModel {
		t.Errorf("expected submodel, got %s", door.Kind)
	}
	if vs := graph.VariantsOf(door); len(vs) != 1 || vs[0].Material != 1 {
		t.Errorf("door variants = %v", vs)
	}

	opening := mustLookup(t, s, "opening")
	if opening.Kind != graph.KindComposite || len(opening.Children) != 2 {
		t.Fatalf("opening = %+v", opening)
	}
	if opening.Children[1].Operation != graph.Intersecting {
		t.Errorf("sill operation = %s", opening.Children[1].Operation)
	}

	if errs := graph.Validate(s); graph.HasErrors(errs) {
		t.Errorf("validation errors: %v", errs)
	}
}

func TestExplicitSubModelCount(t *testing.T) {
	s := mustEvaluate(t, `
(model "m" :variants (list (render 0)) :submodels 3
  (brush "a" (box :size (vec3 1 1 1))))
`)
	if got := mustLookup(t, s, "m").Data.(graph.ModelData).SubModelCount; got != 3 {
		t.Errorf("SubModelCount = %d, want 3", got)
	}
}

func TestNodeLookup(t *testing.T) {
	s := mustEvaluate(t, `
(brush "a" (box :size (vec3 1 1 1)))
(model "m" :variants (list (render 0)) (subtract (node "a")))
`)
	m := mustLookup(t, s, "m")
	if len(m.Children) != 1 || m.Children[0].Node != mustLookup(t, s, "a").ID {
		t.Errorf("children = %+v", m.Children)
	}
}

// ---------------------------------------------------------------------------
// Warnings and errors
// ---------------------------------------------------------------------------

func TestOrphanWarning(t *testing.T) {
	s, warns, evalErrs, err := NewEngine().EvaluateWithWarnings(`
(brush "stray" (box :size (vec3 1 1 1)))
(model "m" :variants (list (render 0)) (brush "a" (box :size (vec3 1 1 1))))
`)
	if err != nil || len(evalErrs) > 0 || s == nil {
		t.Fatalf("unexpected failure: %v %v", err, evalErrs)
	}
	stray := mustLookup(t, s, "stray")
	found := false
	for _, w := range warns {
		if w.NodeID == stray.ID && strings.Contains(w.Message, "orphan") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an orphan warning for stray, got %v", warns)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unknown node", `(node "nope")`, "no node named"},
		{"duplicate brush", `(def c (box :size (vec3 1 1 1))) (brush "a" c) (brush "a" c)`, "duplicate name"},
		{"box without size", `(box)`, "requires :size"},
		{"degenerate box", `(box :size (vec3 0 1 1))`, "box"},
		{"prism sides", `(prism :sides 2 :radius 1 :height 1)`, "prism"},
		{"bad usage", `(surface :usage :sometimes)`, "invalid usage"},
		{"brush needs mesh", `(brush "a" 3)`, "expected mesh"},
		{"child must be a node", `(model "m" :variants (list (render 0)) 42)`, "child 1"},
		{"variant list", `(model "m" :variants (list 1))`, "expected variant"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"negative material", `(render -1)`, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if s != nil {
				t.Fatal("expected nil scene on error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}

func TestEmptySourceStillWorks(t *testing.T) {
	s := mustEvaluate(t, "")
	if s.NodeCount() != 0 {
		t.Errorf("expected empty scene, got %d nodes", s.NodeCount())
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	s := mustEvaluate(t, `
(def w (* 2 3))
(brush "a" (box :size (vec3 w 1 1)))
`)
	if got := s.BrushMesh(mustLookup(t, s, "a")).Bounds().Max.X; got != 3 {
		t.Errorf("expected half width 3, got %f", got)
	}
}
