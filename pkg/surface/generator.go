package surface

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Surface is the generated content of one brush for one destination.
type Surface struct {
	Key     Key
	Content *Content
}

// Result is the output of one Generate call.
type Result struct {
	Surfaces   []Surface // sorted by Key
	Fragments  int
	Unresolved int
}

// Generator clips brushes and derives their surfaces through a Cache.
// Generate may be called concurrently for distinct brushes.
type Generator struct {
	clipper kernel.Clipper
	cache   *Cache
	logger  *slog.Logger
}

// NewGenerator returns a generator using clipper and cache.
func NewGenerator(clipper kernel.Clipper, cache *Cache, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{clipper: clipper, cache: cache, logger: logger}
}

// PositionsKey is the cache key of the clipped geometry of in: the brush
// instance key, the routing table hash and the mesh geometry hash.
func PositionsKey(in kernel.ClipInput) uint64 {
	return graph.Combine(in.Brush.Key, in.Table.Hash, in.Brush.Mesh.GeometryHash())
}

// Generate clips the brush of in against its routing table and splits the
// surviving fragments into one surface per (container, variant).
func (g *Generator) Generate(in kernel.ClipInput) (*Result, error) {
	if in.Brush == nil || in.Table == nil {
		return nil, fmt.Errorf("surface: generate: missing brush or table")
	}
	posKey := PositionsKey(in)
	clip, err := memo(g.cache, KindPositions, g.cache.clips, posKey, func() (*kernel.ClipResult, error) {
		return g.clipper.Clip(in)
	})
	if err != nil {
		return nil, fmt.Errorf("surface: clip brush %d: %w", in.Brush.Brush, err)
	}

	mesh := in.Brush.Mesh
	groups := make(map[graph.SurfaceVariant][]int)
	for i, f := range clip.Fragments {
		for _, v := range mesh.Polygons[f.Polygon].Surface.Variants() {
			groups[v] = append(groups[v], i)
		}
	}

	res := &Result{Fragments: len(clip.Fragments), Unresolved: clip.Unresolved}
	for v, idx := range groups {
		key := Key{Container: in.Brush.Container, Variant: v}
		content, err := g.derive(mesh, clip.Fragments, idx, groupKey(posKey, v, idx), v.Kind == graph.MeshRender)
		if err != nil {
			return nil, fmt.Errorf("surface: brush %d %s: %w", in.Brush.Brush, key, err)
		}
		res.Surfaces = append(res.Surfaces, Surface{Key: key, Content: content})
	}
	sort.Slice(res.Surfaces, func(i, j int) bool { return res.Surfaces[i].Key.Less(res.Surfaces[j].Key) })

	if clip.Unresolved > 0 {
		g.logger.Debug("surface: unresolved fragments excluded",
			slog.Int("brush", in.Brush.Brush),
			slog.Int("count", clip.Unresolved))
	}
	return res, nil
}

// groupKey identifies the geometry of one variant group. Fragment order is
// fixed for a positions key, so the fragment indices pin which faces the
// group holds; surface edits that move a face between groups change it.
func groupKey(posKey uint64, v graph.SurfaceVariant, idx []int) uint64 {
	w := graph.NewHashWriter().Uint64(posKey).Uint64(v.Hash()).Int(len(idx))
	for _, i := range idx {
		w.Int(i)
	}
	return w.Sum()
}

func (g *Generator) derive(mesh *graph.BrushMesh, frags []kernel.Fragment, idx []int, posHash uint64, render bool) (*Content, error) {
	pos := buildPositions(frags, idx, posHash)
	normals, err := memo(g.cache, KindNormals, g.cache.normals, pos.Hash, func() ([]v3.Vec, error) {
		return computeNormals(pos), nil
	})
	if err != nil {
		return nil, err
	}
	if !render {
		return NewContent(pos, normals, nil, nil), nil
	}

	uvHash := graph.NewHashWriter().Uint64(pos.Hash)
	lmHash := graph.NewHashWriter().Uint64(pos.Hash)
	surfaces := make([]graph.SurfaceDescription, len(pos.Spans))
	for i, sp := range pos.Spans {
		surfaces[i] = mesh.Polygons[sp.Polygon].Surface
		uvHash.Uint64(surfaces[i].UV.Hash())
		lmHash.Float64(surfaces[i].LightmapScale)
	}
	uv, err := memo(g.cache, KindUV, g.cache.uvs, uvHash.Sum(), func() ([]float32, error) {
		return computeUV(pos, surfaces), nil
	})
	if err != nil {
		return nil, err
	}
	lm, err := memo(g.cache, KindLightmap, g.cache.lightmap, lmHash.Sum(), func() ([]float32, error) {
		return computeLightmapUV(pos, surfaces), nil
	})
	if err != nil {
		return nil, err
	}
	return NewContent(pos, normals, uv, lm), nil
}

// ---------------------------------------------------------------------------
// Derivations
// ---------------------------------------------------------------------------

func buildPositions(frags []kernel.Fragment, idx []int, hash uint64) *Positions {
	pos := &Positions{Hash: hash}
	for _, i := range idx {
		f := frags[i]
		start := len(pos.Vertices)
		pos.Vertices = append(pos.Vertices, f.Points...)
		for k := 1; k+1 < len(f.Points); k++ {
			pos.Indices = append(pos.Indices, uint32(start), uint32(start+k), uint32(start+k+1))
		}
		pos.Spans = append(pos.Spans, Span{Polygon: f.Polygon, Start: start, Count: len(f.Points)})
	}
	return pos
}

// spanNormal is the Newell normal of one fragment. Slivers too small for
// graph.PlaneFromPoints still get a direction.
func spanNormal(pos *Positions, sp Span) v3.Vec {
	pts := pos.Vertices[sp.Start : sp.Start+sp.Count]
	if pl, ok := graph.PlaneFromPoints(pts); ok {
		return pl.Normal
	}
	var n v3.Vec
	for i := 1; i+1 < len(pts); i++ {
		n = n.Add(pts[i].Sub(pts[0]).Cross(pts[i+1].Sub(pts[0])))
	}
	if l := n.Length(); l > 0 {
		return n.DivScalar(l)
	}
	return n
}

// computeNormals gives every vertex the flat normal of its fragment.
func computeNormals(pos *Positions) []v3.Vec {
	out := make([]v3.Vec, len(pos.Vertices))
	for _, sp := range pos.Spans {
		n := spanNormal(pos, sp)
		for k := sp.Start; k < sp.Start+sp.Count; k++ {
			out[k] = n
		}
	}
	return out
}

// computeUV projects each vertex with its polygon's UV mapping.
func computeUV(pos *Positions, surfaces []graph.SurfaceDescription) []float32 {
	out := make([]float32, 0, len(pos.Vertices)*2)
	for i, sp := range pos.Spans {
		m := surfaces[i].UV.Resolve(spanNormal(pos, sp))
		for _, p := range pos.Vertices[sp.Start : sp.Start+sp.Count] {
			out = append(out, float32(p.Dot(m.U)+m.OffsetU), float32(p.Dot(m.V)+m.OffsetV))
		}
	}
	return out
}

// computeLightmapUV projects each vertex onto the dominant axis plane of its
// fragment, scaled by the polygon's lightmap scale.
func computeLightmapUV(pos *Positions, surfaces []graph.SurfaceDescription) []float32 {
	out := make([]float32, 0, len(pos.Vertices)*2)
	for i, sp := range pos.Spans {
		m := graph.UVMapping{}.Resolve(spanNormal(pos, sp))
		scale := surfaces[i].LightmapScale
		if scale <= 0 {
			scale = 1
		}
		for _, p := range pos.Vertices[sp.Start : sp.Start+sp.Count] {
			out = append(out, float32(p.Dot(m.U)*scale), float32(p.Dot(m.V)*scale))
		}
	}
	return out
}
