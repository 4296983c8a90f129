// Package tessellate evaluates a flattened model with a solid-modeling
// kernel. It is the reference rendition of the CSG expression: the brush
// surface pipeline is checked against it, and the CLI uses it for previews.
package tessellate

import (
	"fmt"

	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/kernel"
)

// Solid folds the model's expression into one kernel solid. Every container
// starts empty and applies its children left to right; a nil result is the
// empty solid. The tessellator is read-only and never mutates the tree.
func Solid(tree *compact.Tree, meshes intersect.MeshSource, k kernel.Kernel) (kernel.Solid, error) {
	if tree == nil || len(tree.Nodes) == 0 {
		return nil, nil
	}
	return walkNode(tree, meshes, k, 0)
}

// Model tessellates the whole model into one mesh named after the model.
func Model(tree *compact.Tree, meshes intersect.MeshSource, k kernel.Kernel) (*kernel.Mesh, error) {
	s, err := Solid(tree, meshes, k)
	if err != nil {
		return nil, err
	}
	mesh, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: model %s: %w", tree.Model, err)
	}
	mesh.Name = tree.Model.String()
	return mesh, nil
}

// Brushes produces one mesh per brush, each in model space and ignoring the
// operations between brushes.
func Brushes(tree *compact.Tree, meshes intersect.MeshSource, k kernel.Kernel) ([]*kernel.Mesh, error) {
	out := make([]*kernel.Mesh, 0, len(tree.Brushes))
	for _, d := range tree.Brushes {
		s, err := handleBrush(tree, meshes, k, d.NodeIndex)
		if err != nil {
			return nil, err
		}
		mesh, err := k.ToMesh(s)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for brush %s: %w", d.NodeID, err)
		}
		mesh.Name = d.NodeID.String()
		out = append(out, mesh)
	}
	return out, nil
}

// walkNode recursively evaluates node i.
func walkNode(tree *compact.Tree, meshes intersect.MeshSource, k kernel.Kernel, i int) (kernel.Solid, error) {
	n := tree.Nodes[i]
	if n.Kind == graph.KindBrush {
		return handleBrush(tree, meshes, k, i)
	}

	var acc kernel.Solid
	for _, c := range tree.Children(i) {
		s, err := walkNode(tree, meshes, k, c)
		if err != nil {
			return nil, err
		}
		switch op := tree.Nodes[c].Operation; op {
		case graph.Additive:
			acc = k.Union(acc, s)
		case graph.Subtractive:
			acc = k.Difference(acc, s)
		case graph.Intersecting:
			acc = k.Intersection(acc, s)
		default:
			return nil, fmt.Errorf("tessellate: node %s: unknown operation %v", tree.Nodes[c].NodeID, op)
		}
	}
	return acc, nil
}

// handleBrush creates the model-space solid of a brush node.
func handleBrush(tree *compact.Tree, meshes intersect.MeshSource, k kernel.Kernel, i int) (kernel.Solid, error) {
	n := tree.Nodes[i]
	mesh := meshes.Mesh(tree.Brushes[n.Brush].Mesh)
	if mesh == nil {
		return nil, fmt.Errorf("tessellate: brush %s: %w", n.NodeID, compact.ErrStructural)
	}
	return k.Transform(k.Brush(mesh), tree.Transforms[i]), nil
}
