package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/brushcsg/pkg/assembly"
	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/graph/graphtest"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/routing"
	"github.com/chazu/brushcsg/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = 4
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func update(t *testing.T, e *Evaluator, s *graph.Scene) *Report {
	t.Helper()
	rep, err := e.Update(context.Background(), s)
	require.NoError(t, err)
	return rep
}

func renderKey(model graph.NodeID) assembly.MeshKey {
	return assembly.KeyOf(surface.Key{Container: model, Variant: graphtest.RenderVariant})
}

// threeBrushes builds [a, b(-) inside a, c far away].
func threeBrushes(t *testing.T) (*graph.Scene, graph.NodeID) {
	t.Helper()
	s, m, _, _ := graphtest.AMinusB(t, v3.Vec{X: 0.25})
	graphtest.Attach(t, s, m, graphtest.Cube(t, s, "c", 1), graph.Additive, v3.Vec{X: 10})
	return s, m
}

func TestFirstPassPublishes(t *testing.T) {
	s := graph.NewScene()
	m := graphtest.Model(s, "model")
	graphtest.Attach(t, s, m, graphtest.Cube(t, s, "a", 2), graph.Additive, v3.Vec{})
	e := newEvaluator(t)

	rep := update(t, e, s)
	assert.NotEmpty(t, rep.PassID)
	assert.Equal(t, []graph.NodeID{m}, rep.Published())

	mr, ok := rep.Model(m)
	require.True(t, ok)
	assert.Equal(t, 1, mr.Brushes)
	assert.Equal(t, 1, mr.Routed)
	assert.Equal(t, 1, mr.Generated)
	assert.Equal(t, 1, mr.Meshes)
	assert.Equal(t, 12, mr.Triangles)

	assert.True(t, e.Changed(m))
	meshes := e.Meshes(m)
	require.NotNil(t, meshes)
	buf, ok := meshes.Buffer(renderKey(m))
	require.True(t, ok)
	assert.Equal(t, 12, buf.TriangleCount())
	assert.Equal(t, buf.VertexCount()*2, len(buf.UV))

	n, ok := e.MaxMeshCount(m)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestUnchangedPassDoesNothing(t *testing.T) {
	s, m := threeBrushes(t)
	e := newEvaluator(t)
	update(t, e, s)
	published := e.Meshes(m)

	rep := update(t, e, s)
	assert.Empty(t, rep.Models)
	assert.False(t, e.Changed(m))
	assert.Same(t, published, e.Meshes(m))
}

func TestMovedBrushRegeneratesAffectedBrushes(t *testing.T) {
	s, m := threeBrushes(t)
	e := newEvaluator(t)

	rep := update(t, e, s)
	mr, _ := rep.Model(m)
	assert.Equal(t, 3, mr.Generated)
	assert.Equal(t, 0, mr.Reused)
	first := e.Meshes(m)

	// Moving b changes a's table too; c touches neither.
	require.NoError(t, s.SetTransform(m, 1, graph.Translation(v3.Vec{X: 0.25, Y: 0.25})))
	rep = update(t, e, s)
	mr, ok := rep.Model(m)
	require.True(t, ok)
	assert.Equal(t, 2, mr.Generated)
	assert.Equal(t, 1, mr.Reused)
	assert.True(t, mr.Published)
	assert.True(t, e.Changed(m))
	assert.NotSame(t, first, e.Meshes(m))
}

func TestStructuralFailureIsIsolated(t *testing.T) {
	s := graph.NewScene()
	m1 := graphtest.Model(s, "m1")
	m2 := graphtest.Model(s, "m2")
	graphtest.Attach(t, s, m1, graphtest.Cube(t, s, "a", 2), graph.Additive, v3.Vec{})
	graphtest.Attach(t, s, m2, graphtest.Cube(t, s, "b", 2), graph.Additive, v3.Vec{})
	e := newEvaluator(t)
	update(t, e, s)
	before := e.Meshes(m1)

	require.NoError(t, s.SetSubModelCount(m1, 2))
	require.NoError(t, s.SetTransform(m2, 0, graph.Translation(v3.Vec{Z: 1})))
	rep, err := e.Update(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, compact.ErrStructural)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, KindStructural, rep.Errors[0].Kind)
	assert.Equal(t, m1, rep.Errors[0].Model)

	assert.Equal(t, []graph.NodeID{m2}, rep.Published())
	assert.False(t, e.Changed(m1))
	assert.True(t, e.Changed(m2))
	assert.Same(t, before, e.Meshes(m1))

	// The hash is recorded: no retry until the model changes again.
	rep = update(t, e, s)
	assert.Empty(t, rep.Models)

	require.NoError(t, s.SetSubModelCount(m1, 0))
	rep = update(t, e, s)
	assert.Equal(t, []graph.NodeID{m1}, rep.Published())
}

func TestCapacityFailureKeepsMeshes(t *testing.T) {
	s := graph.NewScene()
	m := graphtest.Model(s, "model")
	a := graphtest.Cube(t, s, "a", 2)
	graphtest.Attach(t, s, m, a, graph.Additive, v3.Vec{})
	e := newEvaluator(t)
	update(t, e, s)
	before := e.Meshes(m)
	slots := e.Registry().Len()
	original := s.Node(a).Data.(graph.BrushData).Mesh

	// The default surface also emits a collider the model never declared.
	mesh, err := graph.NewBoxMesh(v3.Vec{X: 2, Y: 2, Z: 2}, graph.DefaultSurface())
	require.NoError(t, err)
	require.NoError(t, s.SetBrushMesh(a, s.AddMesh(mesh)))

	rep, err := e.Update(context.Background(), s)
	assert.ErrorIs(t, err, assembly.ErrCapacity)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, KindCapacity, rep.Errors[0].Kind)
	assert.Empty(t, rep.Published())
	assert.False(t, e.Changed(m))
	assert.Same(t, before, e.Meshes(m))
	assert.Equal(t, slots, e.Registry().Len())

	require.NoError(t, s.SetBrushMesh(a, original))
	rep = update(t, e, s)
	assert.Equal(t, []graph.NodeID{m}, rep.Published())
}

func TestMaterialEditRegroupsFaces(t *testing.T) {
	r7 := graph.SurfaceVariant{Kind: graph.MeshRender, Material: 7}
	s := graph.NewScene()
	m := s.AddModel("model", graph.ModelData{Variants: []graph.SurfaceVariant{graphtest.RenderVariant, r7}})
	a := graphtest.Cube(t, s, "a", 2)
	graphtest.Attach(t, s, m, a, graph.Additive, v3.Vec{})
	e := newEvaluator(t)
	update(t, e, s)

	id := s.Node(a).Data.(graph.BrushData).Mesh
	base := s.Mesh(id)
	polys := append([]graph.Polygon(nil), base.Polygons...)
	polys[0].Surface.RenderMaterial = 7
	edited, err := graph.NewBrushMesh(base.Vertices, polys)
	require.NoError(t, err)
	require.NoError(t, s.SetMesh(id, edited))

	rep := update(t, e, s)
	assert.Equal(t, []graph.NodeID{m}, rep.Published())

	meshes := e.Meshes(m)
	for _, tc := range []struct {
		variant   graph.SurfaceVariant
		triangles int
	}{
		{graphtest.RenderVariant, 10},
		{r7, 2},
	} {
		buf, ok := meshes.Buffer(assembly.KeyOf(surface.Key{Container: m, Variant: tc.variant}))
		require.True(t, ok, tc.variant.String())
		assert.Equal(t, tc.triangles, buf.TriangleCount(), tc.variant.String())
		assert.Len(t, buf.Normals, len(buf.Vertices), tc.variant.String())
		assert.Len(t, buf.UV, 2*buf.VertexCount(), tc.variant.String())
		assert.Len(t, buf.LightmapUV, 2*buf.VertexCount(), tc.variant.String())
	}
}

func TestConsistencyFailureRetries(t *testing.T) {
	s, m, a, _ := graphtest.AMinusB(t, v3.Vec{X: 0.25})
	e := newEvaluator(t)
	e.intersect = func(tree *compact.Tree, meshes intersect.MeshSource) (*intersect.Result, error) {
		res, err := e.index.Update(tree, meshes)
		if err == nil && len(res.Brushes[0].Entries) > 0 {
			res.Brushes[0].Entries[0].Other = 7
		}
		return res, err
	}

	rep, err := e.Update(context.Background(), s)
	assert.ErrorIs(t, err, routing.ErrConsistency)
	require.NotEmpty(t, rep.Errors)
	assert.Equal(t, KindConsistency, rep.Errors[0].Kind)
	assert.Equal(t, a, rep.Errors[0].Brush)
	_, recorded := e.Tracker().Recorded(m)
	assert.False(t, recorded)

	e.intersect = e.index.Update
	rep = update(t, e, s)
	mr, ok := rep.Model(m)
	require.True(t, ok)
	assert.True(t, mr.Published)
	assert.Equal(t, 2, mr.Routed)
}

func TestCancelledPassRetries(t *testing.T) {
	s, m := threeBrushes(t)
	e := newEvaluator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := e.Update(ctx, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, KindInternal, rep.Errors[0].Kind)
	assert.Nil(t, e.Meshes(m))

	rep = update(t, e, s)
	assert.Equal(t, []graph.NodeID{m}, rep.Published())
}

func TestRemovedModelReleasesSlots(t *testing.T) {
	s, m := threeBrushes(t)
	e := newEvaluator(t)
	update(t, e, s)
	require.Positive(t, e.Registry().Len())

	require.NoError(t, s.SetTransform(m, 1, graph.Translation(v3.Vec{Y: 0.25})))
	update(t, e, s)

	require.NoError(t, s.RemoveModel(m))
	rep := update(t, e, s)
	assert.Equal(t, []graph.NodeID{m}, rep.Removed)
	assert.Nil(t, e.Meshes(m))
	assert.False(t, e.Changed(m))
	_, ok := e.MaxMeshCount(m)
	assert.False(t, ok)
	assert.Zero(t, e.Registry().Len())
}

func TestHostUnknownModel(t *testing.T) {
	e := newEvaluator(t)
	var h Host = e
	assert.False(t, h.Changed(42))
	assert.Nil(t, h.Meshes(42))
	_, ok := h.MaxMeshCount(42)
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{compact.ErrStructural, KindStructural},
		{assembly.ErrCapacity, KindCapacity},
		{routing.ErrConsistency, KindConsistency},
		{context.Canceled, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			pe := modelError(1, tt.err)
			assert.Equal(t, tt.want, pe.Kind)
			assert.ErrorIs(t, pe, tt.err)
			assert.Contains(t, pe.Error(), tt.want.String())
		})
	}
}
