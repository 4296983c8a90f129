// Package surface turns clipped brush fragments into per-variant surface
// geometry, caches every derivation step by the hash of its inputs, and
// keeps the generated content in a reference-counted registry.
package surface

import (
	"fmt"

	"github.com/chazu/brushcsg/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Key names the destination of a surface: one variant of one container.
type Key struct {
	Container graph.NodeID
	Variant   graph.SurfaceVariant
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Container, k.Variant)
}

// Less orders keys by container, then mesh kind, then material.
func (k Key) Less(o Key) bool {
	if k.Container != o.Container {
		return k.Container < o.Container
	}
	if k.Variant.Kind != o.Variant.Kind {
		return k.Variant.Kind < o.Variant.Kind
	}
	return k.Variant.Material < o.Variant.Material
}

// Span is the vertex range of one fragment inside Positions.
type Span struct {
	Polygon int
	Start   int
	Count   int
}

// Positions is the triangulated geometry of one surface. Every fragment
// owns its vertices; triangles fan out from the first vertex of each span.
type Positions struct {
	Vertices []v3.Vec
	Indices  []uint32
	Spans    []Span
	Hash     uint64
}

// Content is the immutable geometry handed to the registry and the mesh
// assembler. UV and LightmapUV are nil for collider surfaces.
type Content struct {
	Positions  []float32 // x,y,z per vertex
	Normals    []float32 // x,y,z per vertex
	UV         []float32 // u,v per vertex
	LightmapUV []float32 // u,v per vertex
	Indices    []uint32

	hash uint64
}

// NewContent packs derived streams into a Content and computes its hash.
func NewContent(pos *Positions, normals []v3.Vec, uv, lightmap []float32) *Content {
	c := &Content{
		Positions:  flatten(pos.Vertices),
		Normals:    flatten(normals),
		UV:         uv,
		LightmapUV: lightmap,
		Indices:    append([]uint32(nil), pos.Indices...),
	}
	c.hash = c.contentHash()
	return c
}

// Hash returns the content hash over the geometry streams.
func (c *Content) Hash() uint64 {
	if c == nil {
		return 0
	}
	return c.hash
}

// VertexCount returns the number of vertices.
func (c *Content) VertexCount() int { return len(c.Positions) / 3 }

// TriangleCount returns the number of triangles.
func (c *Content) TriangleCount() int { return len(c.Indices) / 3 }

func (c *Content) contentHash() uint64 {
	w := graph.NewHashWriter()
	for _, stream := range [][]float32{c.Positions, c.Normals, c.UV, c.LightmapUV} {
		w.Int(len(stream))
		for _, f := range stream {
			w.Float64(float64(f))
		}
	}
	w.Int(len(c.Indices))
	for _, i := range c.Indices {
		w.Uint32(i)
	}
	return w.Sum()
}

func flatten(vs []v3.Vec) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, float32(v.X), float32(v.Y), float32(v.Z))
	}
	return out
}
