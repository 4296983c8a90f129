// Package compact flattens one model's hierarchy into a dependency-ordered
// array with contiguous child blocks and accumulated model-space transforms.
package compact

import (
	"errors"
	"fmt"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/deadsy/sdfx/sdf"
)

// ErrStructural marks hierarchies that cannot be flattened: cycles, missing
// nodes, kind violations, brushes without meshes and sub-model count
// mismatches.
var ErrStructural = errors.New("compact: structural error")

// HierarchyNode is one instanced node of the flattened tree.
type HierarchyNode struct {
	NodeID    graph.NodeID
	Kind      graph.NodeKind
	Operation graph.Operation // operation on the edge from the parent; Additive for the root
	Parent    int             // -1 for the root

	ChildOffset int
	ChildCount  int

	Brush     int // index into Tree.Brushes, or -1
	Container int // index of the nearest model or sub-model node, self included

	// Order is the preorder (expression order) position of the node and End
	// the preorder position of its last descendant.
	Order int
	End   int

	// Path identifies this instance across passes: a hash of the edge path
	// from the model root.
	Path uint64
}

// BrushDescriptor describes one brush instance in expression order.
type BrushDescriptor struct {
	NodeIndex int
	NodeID    graph.NodeID
	Mesh      graph.BrushMeshID
	Container graph.NodeID
	Path      uint64
}

// Tree is the flattened hierarchy of one model. Nodes[0] is the model root;
// every node precedes its children and each node's children occupy
// Nodes[ChildOffset : ChildOffset+ChildCount].
type Tree struct {
	Model     graph.NodeID
	ModelHash uint64

	Nodes      []HierarchyNode
	Transforms []sdf.M44 // accumulated model-space transform per node
	Brushes    []BrushDescriptor
	Containers []graph.NodeID // model first, then sub-models in first-visit order
	Preorder   []int          // node index by expression order

	byPath map[uint64]int // brush path -> brush index
}

// Children returns the node indices of the children of node i.
func (t *Tree) Children(i int) []int {
	n := t.Nodes[i]
	out := make([]int, n.ChildCount)
	for k := range out {
		out[k] = n.ChildOffset + k
	}
	return out
}

// Ancestors returns the indices of the ancestors of node i, parent first.
func (t *Tree) Ancestors(i int) []int {
	var out []int
	for p := t.Nodes[i].Parent; p >= 0; p = t.Nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// OperationChain returns the edge operations from the root down to brush b.
func (t *Tree) OperationChain(b int) []graph.Operation {
	i := t.Brushes[b].NodeIndex
	var ops []graph.Operation
	for ; t.Nodes[i].Parent >= 0; i = t.Nodes[i].Parent {
		ops = append(ops, t.Nodes[i].Operation)
	}
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

// AllAdditive reports whether every edge between the root and node i is
// Additive.
func (t *Tree) AllAdditive(i int) bool {
	for ; t.Nodes[i].Parent >= 0; i = t.Nodes[i].Parent {
		if t.Nodes[i].Operation != graph.Additive {
			return false
		}
	}
	return true
}

// CommonAncestor returns the lowest common ancestor of nodes i and j.
func (t *Tree) CommonAncestor(i, j int) int {
	onPath := map[int]bool{i: true}
	for _, a := range t.Ancestors(i) {
		onPath[a] = true
	}
	for k := j; k >= 0; k = t.Nodes[k].Parent {
		if onPath[k] {
			return k
		}
	}
	return 0
}

// ChildToward returns the child of ancestor whose subtree contains node i.
// It returns i when ancestor is i's parent and -1 when ancestor is not an
// ancestor of i.
func (t *Tree) ChildToward(ancestor, i int) int {
	for ; i >= 0; i = t.Nodes[i].Parent {
		if t.Nodes[i].Parent == ancestor {
			return i
		}
	}
	return -1
}

// BrushByPath returns the brush index with the given instance path.
func (t *Tree) BrushByPath(path uint64) (int, bool) {
	b, ok := t.byPath[path]
	return b, ok
}

// BrushOf returns the brush index of node i, or -1.
func (t *Tree) BrushOf(i int) int {
	if i < 0 || i >= len(t.Nodes) {
		return -1
	}
	return t.Nodes[i].Brush
}

// ---------------------------------------------------------------------------
// Flatten
// ---------------------------------------------------------------------------

type flattener struct {
	order  int
	scene  *graph.Scene
	tree   *Tree
	onPath map[graph.NodeID]bool
	subs   map[graph.NodeID]bool
	subCnt int
}

// Flatten builds the tree of model. The traversal is a single depth-first
// pass: when a node is visited its whole child block is allocated, then each
// child is visited in order. Brushes are numbered in visit order, which is
// the expression order used by routing.
//
// A node reachable through several paths is instanced once per path.
func Flatten(scene *graph.Scene, model graph.NodeID, modelHash uint64) (*Tree, error) {
	root := scene.Node(model)
	if root == nil {
		return nil, fmt.Errorf("%w: model %s does not exist", ErrStructural, model)
	}
	if root.Kind != graph.KindModel {
		return nil, fmt.Errorf("%w: %s is a %s, not a model", ErrStructural, model, root.Kind)
	}

	f := &flattener{
		scene:  scene,
		onPath: make(map[graph.NodeID]bool),
		subs:   make(map[graph.NodeID]bool),
		tree: &Tree{
			Model:      model,
			ModelHash:  modelHash,
			Containers: []graph.NodeID{model},
			byPath:     make(map[uint64]int),
		},
	}
	f.tree.Nodes = append(f.tree.Nodes, HierarchyNode{
		NodeID:    model,
		Kind:      graph.KindModel,
		Operation: graph.Additive,
		Parent:    -1,
		Brush:     -1,
		Container: 0,
		Path:      graph.Combine(uint64(model)),
	})
	f.tree.Transforms = append(f.tree.Transforms, sdf.Identity3d())

	if err := f.visit(0); err != nil {
		return nil, err
	}

	want := root.Data.(graph.ModelData).SubModelCount
	if f.subCnt != want {
		return nil, fmt.Errorf("%w: model %s declares %d sub-models, hierarchy has %d",
			ErrStructural, model, want, f.subCnt)
	}
	return f.tree, nil
}

func (f *flattener) visit(i int) error {
	t := f.tree
	id := t.Nodes[i].NodeID
	n := f.scene.Node(id)

	t.Nodes[i].Order = f.order
	t.Preorder = append(t.Preorder, i)
	f.order++
	defer func() { t.Nodes[i].End = f.order - 1 }()

	if n.Kind == graph.KindBrush {
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: brush %s has children", ErrStructural, id)
		}
		d, _ := n.Data.(graph.BrushData)
		mesh := f.scene.Mesh(d.Mesh)
		if mesh == nil {
			return fmt.Errorf("%w: brush %s references missing mesh %d", ErrStructural, id, d.Mesh)
		}
		if !mesh.Built() {
			return fmt.Errorf("%w: brush %s mesh %d was not built with NewBrushMesh", ErrStructural, id, d.Mesh)
		}
		b := len(t.Brushes)
		t.Nodes[i].Brush = b
		t.Brushes = append(t.Brushes, BrushDescriptor{
			NodeIndex: i,
			NodeID:    id,
			Mesh:      d.Mesh,
			Container: t.Nodes[t.Nodes[i].Container].NodeID,
			Path:      t.Nodes[i].Path,
		})
		t.byPath[t.Nodes[i].Path] = b
		return nil
	}

	f.onPath[id] = true
	defer delete(f.onPath, id)

	offset := len(t.Nodes)
	t.Nodes[i].ChildOffset = offset
	t.Nodes[i].ChildCount = len(n.Children)

	for k, c := range n.Children {
		cn := f.scene.Node(c.Node)
		switch {
		case cn == nil:
			return fmt.Errorf("%w: %s child %d references missing node %s", ErrStructural, id, k, c.Node)
		case cn.Kind == graph.KindModel:
			return fmt.Errorf("%w: model %s is a child of %s", ErrStructural, c.Node, id)
		case f.onPath[c.Node]:
			return fmt.Errorf("%w: cycle through %s", ErrStructural, c.Node)
		case !c.Operation.Valid():
			return fmt.Errorf("%w: %s child %d has invalid operation", ErrStructural, id, k)
		}

		container := t.Nodes[i].Container
		if cn.Kind == graph.KindSubModel {
			container = offset + k
			f.subCnt++
			if !f.subs[c.Node] {
				f.subs[c.Node] = true
				t.Containers = append(t.Containers, c.Node)
			}
		}
		t.Nodes = append(t.Nodes, HierarchyNode{
			NodeID:    c.Node,
			Kind:      cn.Kind,
			Operation: c.Operation,
			Parent:    i,
			Brush:     -1,
			Container: container,
			Path:      graph.Combine(t.Nodes[i].Path, uint64(k), uint64(c.Node)),
		})
		t.Transforms = append(t.Transforms, t.Transforms[i].Mul(c.Transform.Matrix()))
	}

	for k := range n.Children {
		if err := f.visit(offset + k); err != nil {
			return err
		}
	}
	return nil
}
