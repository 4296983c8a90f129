package surface

import (
	"math"
	"testing"

	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/graph/graphtest"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/chazu/brushcsg/pkg/kernel/planar"
	"github.com/chazu/brushcsg/pkg/routing"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleBrush builds a model holding one brush with mesh m.
func singleBrush(t *testing.T, m *graph.BrushMesh) (*graph.Scene, graph.NodeID) {
	t.Helper()
	s := graph.NewScene()
	model := s.AddModel("model", graph.ModelData{Variants: m.Polygons[0].Surface.Variants()})
	graphtest.Attach(t, s, model, s.AddBrush("a", s.AddMesh(m)), graph.Additive, v3.Vec{})
	return s, model
}

func clipInput(t *testing.T, s *graph.Scene, model graph.NodeID, brush int) kernel.ClipInput {
	t.Helper()
	tree, err := compact.Flatten(s, model, 1)
	require.NoError(t, err)
	res, err := intersect.NewIndex(intersect.DefaultConfig(), nil).Update(tree, s)
	require.NoError(t, err)
	b, err := routing.NewBuilder(8, nil)
	require.NoError(t, err)
	table, err := b.Build(tree, res, brush)
	require.NoError(t, err)
	return kernel.NewClipInput(res, table)
}

func newGenerator(t *testing.T) (*Generator, *Cache) {
	t.Helper()
	c, err := NewCache(DefaultCacheSizes())
	require.NoError(t, err)
	return NewGenerator(planar.New(0), c, nil), c
}

func box(t *testing.T, surf graph.SurfaceDescription) *graph.BrushMesh {
	t.Helper()
	m, err := graph.NewBoxMesh(v3.Vec{X: 2, Y: 2, Z: 2}, surf)
	require.NoError(t, err)
	return m
}

func vec(stream []float32, i int) v3.Vec {
	return v3.Vec{X: float64(stream[3*i]), Y: float64(stream[3*i+1]), Z: float64(stream[3*i+2])}
}

func TestGenerateSingleCube(t *testing.T) {
	s, m := singleBrush(t, box(t, graph.DefaultSurface()))
	g, _ := newGenerator(t)

	res, err := g.Generate(clipInput(t, s, m, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Fragments)
	assert.Zero(t, res.Unresolved)
	require.Len(t, res.Surfaces, 2)

	render, collider := res.Surfaces[0], res.Surfaces[1]
	assert.Equal(t, graph.MeshRender, render.Key.Variant.Kind)
	assert.Equal(t, graph.MeshCollider, collider.Key.Variant.Kind)
	assert.Equal(t, m, render.Key.Container)

	c := render.Content
	assert.Equal(t, 24, c.VertexCount())
	assert.Equal(t, 12, c.TriangleCount())
	assert.Len(t, c.UV, 48)
	assert.Len(t, c.LightmapUV, 48)
	assert.Nil(t, collider.Content.UV)
	assert.Nil(t, collider.Content.LightmapUV)
	assert.Equal(t, c.Positions, collider.Content.Positions)

	// Flat normals point away from the centre.
	for i := 0; i < c.VertexCount(); i++ {
		n, p := vec(c.Normals, i), vec(c.Positions, i)
		assert.InDelta(t, 1, n.Length(), 1e-6)
		assert.Greater(t, n.Dot(p), 0.0)
	}
}

func TestGenerateCavityFacesInward(t *testing.T) {
	s, m, _, _ := graphtest.AMinusB(t, v3.Vec{})
	g, _ := newGenerator(t)

	res, err := g.Generate(clipInput(t, s, m, 1))
	require.NoError(t, err)
	require.Len(t, res.Surfaces, 1)
	c := res.Surfaces[0].Content
	assert.Equal(t, 24, c.VertexCount())
	for i := 0; i < c.VertexCount(); i++ {
		assert.Less(t, vec(c.Normals, i).Dot(vec(c.Positions, i)), 0.0)
	}
}

func TestGenerateSplitsByMaterial(t *testing.T) {
	base := box(t, graphtest.RenderSurface())
	polys := append([]graph.Polygon(nil), base.Polygons...)
	polys[0].Surface.RenderMaterial = 7
	mesh, err := graph.NewBrushMesh(base.Vertices, polys)
	require.NoError(t, err)

	s, m := singleBrush(t, mesh)
	g, _ := newGenerator(t)
	res, err := g.Generate(clipInput(t, s, m, 0))
	require.NoError(t, err)

	require.Len(t, res.Surfaces, 2)
	assert.Equal(t, uint32(0), res.Surfaces[0].Key.Variant.Material)
	assert.Equal(t, uint32(7), res.Surfaces[1].Key.Variant.Material)
	assert.Equal(t, 10, res.Surfaces[0].Content.TriangleCount())
	assert.Equal(t, 2, res.Surfaces[1].Content.TriangleCount())
}

// withMaterial returns a copy of base whose polygon face renders with
// material.
func withMaterial(t *testing.T, base *graph.BrushMesh, face int, material uint32) *graph.BrushMesh {
	t.Helper()
	polys := append([]graph.Polygon(nil), base.Polygons...)
	polys[face].Surface.RenderMaterial = material
	m, err := graph.NewBrushMesh(base.Vertices, polys)
	require.NoError(t, err)
	return m
}

func surfaceFor(t *testing.T, res *Result, material uint32) *Content {
	t.Helper()
	for _, sf := range res.Surfaces {
		if sf.Key.Variant.Material == material {
			return sf.Content
		}
	}
	t.Fatalf("no surface with material %d", material)
	return nil
}

func TestRegroupedFacesDeriveFreshStreams(t *testing.T) {
	base := box(t, graphtest.RenderSurface())
	g, c := newGenerator(t)

	for _, face := range []int{-1, 0, 1} {
		mesh := base
		if face >= 0 {
			mesh = withMaterial(t, base, face, 7)
		}
		s, m := singleBrush(t, mesh)
		in := clipInput(t, s, m, 0)

		got, err := g.Generate(in)
		require.NoError(t, err)
		fresh, _ := newGenerator(t)
		want, err := fresh.Generate(in)
		require.NoError(t, err)

		require.Len(t, got.Surfaces, len(want.Surfaces), "face %d", face)
		for i := range want.Surfaces {
			gc := got.Surfaces[i].Content
			assert.Equal(t, want.Surfaces[i].Content.Hash(), gc.Hash(), "face %d surface %d", face, i)
			assert.Len(t, gc.Normals, len(gc.Positions), "face %d surface %d", face, i)
			assert.Len(t, gc.UV, 2*gc.VertexCount(), "face %d surface %d", face, i)
			assert.Len(t, gc.LightmapUV, 2*gc.VertexCount(), "face %d surface %d", face, i)
		}
	}

	// Material edits never re-clip.
	assert.Equal(t, CacheStats{Hits: 2, Misses: 1}, c.Stats(KindPositions))
}

func TestSwappedFacesKeepTheirNormals(t *testing.T) {
	base := box(t, graphtest.RenderSurface())
	g, _ := newGenerator(t)

	var normals [][]float32
	for _, face := range []int{0, 1} {
		s, m := singleBrush(t, withMaterial(t, base, face, 7))
		res, err := g.Generate(clipInput(t, s, m, 0))
		require.NoError(t, err)
		c := surfaceFor(t, res, 7)
		require.Equal(t, 4, c.VertexCount())
		for i := 0; i < c.VertexCount(); i++ {
			// Box faces lie on the planes |x|,|y|,|z| = 1, so a face's normal
			// is its vertices' shared outward axis.
			n, p := vec(c.Normals, i), vec(c.Positions, i)
			assert.InDelta(t, 1.0, n.Dot(p), 1e-6, "face %d vertex %d", face, i)
		}
		normals = append(normals, c.Normals)
	}
	assert.NotEqual(t, normals[0], normals[1])
}

func TestGenerateHitsCache(t *testing.T) {
	s, m := singleBrush(t, box(t, graphtest.RenderSurface()))
	in := clipInput(t, s, m, 0)
	g, c := newGenerator(t)

	first, err := g.Generate(in)
	require.NoError(t, err)
	second, err := g.Generate(in)
	require.NoError(t, err)

	assert.Equal(t, first.Surfaces[0].Content.Hash(), second.Surfaces[0].Content.Hash())
	for _, k := range []Kind{KindPositions, KindNormals, KindUV, KindLightmap} {
		assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.Stats(k), k.String())
	}
}

func TestDerivationsInvalidateIndependently(t *testing.T) {
	surf := graphtest.RenderSurface()
	withUV := surf
	withUV.UV = graph.UVMapping{U: v3.Vec{X: 2}, V: v3.Vec{Y: 2}}
	withScale := surf
	withScale.LightmapScale = 4

	g, c := newGenerator(t)
	var hashes []uint64
	for _, sd := range []graph.SurfaceDescription{surf, withUV, withScale} {
		s, m := singleBrush(t, box(t, sd))
		res, err := g.Generate(clipInput(t, s, m, 0))
		require.NoError(t, err)
		require.Len(t, res.Surfaces, 1)
		hashes = append(hashes, res.Surfaces[0].Content.Hash())
	}

	// Surface settings never touch positions or normals.
	assert.Equal(t, CacheStats{Hits: 2, Misses: 1}, c.Stats(KindPositions))
	assert.Equal(t, CacheStats{Hits: 2, Misses: 1}, c.Stats(KindNormals))
	// The UV change misses only the UV cache, the scale change only the
	// lightmap cache.
	assert.Equal(t, CacheStats{Hits: 1, Misses: 2}, c.Stats(KindUV))
	assert.Equal(t, CacheStats{Hits: 1, Misses: 2}, c.Stats(KindLightmap))

	assert.NotEqual(t, hashes[0], hashes[1])
	assert.NotEqual(t, hashes[0], hashes[2])
}

func TestUVProjection(t *testing.T) {
	pos := &Positions{
		Vertices: []v3.Vec{{X: 1, Y: 2, Z: 3}, {X: 2, Y: 2, Z: 3}, {X: 2, Y: 3, Z: 3}},
		Indices:  []uint32{0, 1, 2},
		Spans:    []Span{{Start: 0, Count: 3}},
	}
	surf := graph.SurfaceDescription{
		UV:            graph.UVMapping{U: v3.Vec{X: 1}, V: v3.Vec{Y: 1}, OffsetU: 0.5},
		LightmapScale: 2,
	}
	uv := computeUV(pos, []graph.SurfaceDescription{surf})
	assert.Equal(t, []float32{1.5, 2, 2.5, 2, 2.5, 3}, uv)

	// Normal +Z: automatic projection onto X/Y.
	lm := computeLightmapUV(pos, []graph.SurfaceDescription{surf})
	assert.Equal(t, []float32{2, 4, 4, 4, 4, 6}, lm)

	for _, n := range computeNormals(pos) {
		assert.InDelta(t, 1, n.Z, 1e-12)
		assert.False(t, math.IsNaN(n.X))
	}
}

func TestKeyOrder(t *testing.T) {
	a := Key{Container: 1, Variant: graph.SurfaceVariant{Kind: graph.MeshCollider}}
	b := Key{Container: 2, Variant: graph.SurfaceVariant{Kind: graph.MeshRender}}
	c := Key{Container: 2, Variant: graph.SurfaceVariant{Kind: graph.MeshRender, Material: 3}}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, "#2/render:3", c.String())
}
