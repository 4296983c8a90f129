package assembly

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/chazu/brushcsg/pkg/surface"
)

// ErrCapacity is returned when a model's surfaces need more mesh buffers
// than it declared, or target a variant it never declared.
var ErrCapacity = errors.New("assembly: mesh capacity exceeded")

// Placement associates registered surface content with its destination.
// Order is the expression order of the brush that produced it; buffers
// concatenate surfaces by ascending Order.
type Placement struct {
	Key   surface.Key
	Slot  surface.Slot
	Order int
}

// MeshBuffer is one filled mesh of a model. UV streams are empty for
// collider meshes.
type MeshBuffer struct {
	Key MeshKey
	kernel.Mesh
	UV         []float32
	LightmapUV []float32
}

// ModelMeshes is the published output of one model: buffers in ascending
// key order and the index of each key.
type ModelMeshes struct {
	Model   graph.NodeID
	Buffers []MeshBuffer
	Index   map[MeshKey]int
}

// Buffer returns the buffer for k.
func (m *ModelMeshes) Buffer(k MeshKey) (*MeshBuffer, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.Index[k]
	if !ok {
		return nil, false
	}
	return &m.Buffers[i], true
}

// TriangleCount sums the triangles of every buffer.
func (m *ModelMeshes) TriangleCount() int {
	n := 0
	for i := range m.Buffers {
		n += m.Buffers[i].TriangleCount()
	}
	return n
}

// Coordinator assembles model meshes. It holds no per-model state and may
// assemble different models concurrently.
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator returns a coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger}
}

// Assemble writes the content of every placement into fresh buffers. The
// capacity check runs before any geometry is copied; on error nothing is
// returned.
func (c *Coordinator) Assemble(layout *Layout, placements []Placement, reg *surface.Registry) (*ModelMeshes, error) {
	groups := make(map[surface.Key][]Placement)
	for _, p := range placements {
		if !layout.Declares(p.Key) {
			return nil, fmt.Errorf("%w: model %s: undeclared surface %s", ErrCapacity, layout.Model, p.Key)
		}
		groups[p.Key] = append(groups[p.Key], p)
	}
	if len(groups) > layout.Max() {
		return nil, fmt.Errorf("%w: model %s: %d meshes for %d declared", ErrCapacity, layout.Model, len(groups), layout.Max())
	}

	keys := make([]surface.Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := &ModelMeshes{
		Model:   layout.Model,
		Buffers: make([]MeshBuffer, 0, len(keys)),
		Index:   make(map[MeshKey]int, len(keys)),
	}
	for _, k := range keys {
		ps := groups[k]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Order < ps[j].Order })

		buf := MeshBuffer{Key: KeyOf(k)}
		buf.Name = k.String()
		for _, p := range ps {
			content, ok := reg.Get(p.Slot)
			if !ok {
				return nil, fmt.Errorf("assembly: model %s: %s: %w", layout.Model, k, surface.ErrUnknownSlot)
			}
			appendContent(&buf, content)
		}
		out.Index[buf.Key] = len(out.Buffers)
		out.Buffers = append(out.Buffers, buf)
	}

	c.logger.Debug("assembly: model assembled",
		slog.String("model", layout.Model.String()),
		slog.Int("buffers", len(out.Buffers)),
		slog.Int("placements", len(placements)))
	return out, nil
}

func appendContent(buf *MeshBuffer, c *surface.Content) {
	base := uint32(buf.VertexCount())
	buf.Vertices = append(buf.Vertices, c.Positions...)
	buf.Normals = append(buf.Normals, c.Normals...)
	buf.UV = append(buf.UV, c.UV...)
	buf.LightmapUV = append(buf.LightmapUV, c.LightmapUV...)
	for _, i := range c.Indices {
		buf.Indices = append(buf.Indices, base+i)
	}
}
