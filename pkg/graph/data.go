package graph

import "fmt"

// ---------------------------------------------------------------------------
// Surface variants
// ---------------------------------------------------------------------------

// MeshKind distinguishes render meshes from collider meshes.
type MeshKind uint8

const (
	MeshRender MeshKind = iota
	MeshCollider
)

func (k MeshKind) String() string {
	switch k {
	case MeshRender:
		return "render"
	case MeshCollider:
		return "collider"
	default:
		return fmt.Sprintf("MeshKind(%d)", uint8(k))
	}
}

// SurfaceVariant is one unique render or collider surface setting a
// container declares ahead of evaluation. Each declared variant owns exactly
// one mesh slot in its container.
type SurfaceVariant struct {
	Kind     MeshKind `json:"kind"`
	Material uint32   `json:"material"`
}

// Hash returns the content hash of the variant's semantic fields.
func (v SurfaceVariant) Hash() uint64 {
	return NewHashWriter().Uint8(uint8(v.Kind)).Uint32(v.Material).Sum()
}

func (v SurfaceVariant) String() string {
	return fmt.Sprintf("%s:%d", v.Kind, v.Material)
}

// UniqueVariants returns vs with duplicates removed, preserving first
// occurrence order.
func UniqueVariants(vs []SurfaceVariant) []SurfaceVariant {
	seen := make(map[SurfaceVariant]struct{}, len(vs))
	out := make([]SurfaceVariant, 0, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

// ModelData is the payload of a Model node.
type ModelData struct {
	Variants []SurfaceVariant `json:"variants"`
	// SubModelCount is the number of sub-model instances the host registered
	// for this model. Flattening fails when the hierarchy disagrees.
	SubModelCount int `json:"submodel_count"`
}

func (ModelData) nodeData() {}

// SubModelData is the payload of a SubModel node.
type SubModelData struct {
	Variants []SurfaceVariant `json:"variants"`
}

func (SubModelData) nodeData() {}

// ---------------------------------------------------------------------------
// Composite
// ---------------------------------------------------------------------------

// CompositeData is the payload of a Composite node. Composites have no
// settings beyond the operations on their child edges.
type CompositeData struct{}

func (CompositeData) nodeData() {}

// ---------------------------------------------------------------------------
// Brush
// ---------------------------------------------------------------------------

// BrushMeshID references a BrushMesh registered with a Scene.
type BrushMeshID uint32

// BrushData is the payload of a Brush node.
type BrushData struct {
	Mesh BrushMeshID `json:"mesh"`
}

func (BrushData) nodeData() {}

// VariantsOf returns the declared variants of a container node, or nil.
func VariantsOf(n *Node) []SurfaceVariant {
	switch d := n.Data.(type) {
	case ModelData:
		return d.Variants
	case SubModelData:
		return d.Variants
	}
	return nil
}
