package graph

import (
	"errors"
	"fmt"
)

// ErrNoNode is returned when a mutator references a node that is not in the
// scene.
var ErrNoNode = errors.New("graph: no such node")

// Scene is the arena holding every node, the brush-mesh registry and the list
// of model roots. It is not safe for concurrent mutation; the evaluator reads
// it only between mutations.
type Scene struct {
	nodes    []*Node // index = id-1
	meshes   map[BrushMeshID]*BrushMesh
	models   []NodeID
	names    map[string]NodeID
	nextMesh BrushMeshID
	version  uint64
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{
		meshes: make(map[BrushMeshID]*BrushMesh),
		names:  make(map[string]NodeID),
	}
}

// Node returns the node with the given ID, or nil.
func (s *Scene) Node(id NodeID) *Node {
	if id.IsZero() || int(id) > len(s.nodes) {
		return nil
	}
	return s.nodes[id-1]
}

// Lookup returns the node with the given name, or nil.
func (s *Scene) Lookup(name string) *Node {
	id, ok := s.names[name]
	if !ok {
		return nil
	}
	return s.Node(id)
}

// MustLookup returns the node with the given name, or panics.
func (s *Scene) MustLookup(name string) *Node {
	n := s.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Models returns the model roots in creation order.
func (s *Scene) Models() []NodeID {
	out := make([]NodeID, len(s.models))
	copy(out, s.models)
	return out
}

// NodeCount returns the total number of nodes.
func (s *Scene) NodeCount() int { return len(s.nodes) }

// Version increases on every mutation.
func (s *Scene) Version() uint64 { return s.version }

// Mesh returns the registered brush mesh, or nil.
func (s *Scene) Mesh(id BrushMeshID) *BrushMesh { return s.meshes[id] }

// BrushMesh returns the mesh referenced by a brush node, or nil.
func (s *Scene) BrushMesh(n *Node) *BrushMesh {
	d, ok := n.Data.(BrushData)
	if !ok {
		return nil
	}
	return s.meshes[d.Mesh]
}

// AddMesh registers a mesh and returns its ID.
func (s *Scene) AddMesh(m *BrushMesh) BrushMeshID {
	s.nextMesh++
	s.meshes[s.nextMesh] = m
	s.version++
	return s.nextMesh
}

// SetMesh replaces the content behind a mesh ID. Brushes referencing it pick
// up the new content hash on the next pass.
func (s *Scene) SetMesh(id BrushMeshID, m *BrushMesh) error {
	if _, ok := s.meshes[id]; !ok {
		return fmt.Errorf("graph: set mesh %d: no such mesh", id)
	}
	s.meshes[id] = m
	s.version++
	return nil
}

func (s *Scene) add(kind NodeKind, name string, data NodeData) NodeID {
	id := NodeID(len(s.nodes) + 1)
	s.nodes = append(s.nodes, &Node{ID: id, Kind: kind, Name: name, Data: data, rev: 1})
	if name != "" {
		s.names[name] = id
	}
	s.version++
	return id
}

// AddModel creates a model root.
func (s *Scene) AddModel(name string, data ModelData) NodeID {
	id := s.add(KindModel, name, data)
	s.models = append(s.models, id)
	return id
}

// RemoveModel drops model from the list of model roots. The node itself
// stays in the arena so other references remain valid.
func (s *Scene) RemoveModel(model NodeID) error {
	for i, id := range s.models {
		if id == model {
			s.models = append(s.models[:i], s.models[i+1:]...)
			s.version++
			return nil
		}
	}
	return fmt.Errorf("%w: model %s", ErrNoNode, model)
}

// AddSubModel creates a sub-model container.
func (s *Scene) AddSubModel(name string, data SubModelData) NodeID {
	return s.add(KindSubModel, name, data)
}

// AddComposite creates an empty composite.
func (s *Scene) AddComposite(name string) NodeID {
	return s.add(KindComposite, name, CompositeData{})
}

// AddBrush creates a brush leaf referencing mesh.
func (s *Scene) AddBrush(name string, mesh BrushMeshID) NodeID {
	return s.add(KindBrush, name, BrushData{Mesh: mesh})
}

func (s *Scene) touch(n *Node) {
	n.rev++
	s.version++
}

func (s *Scene) mutable(id NodeID) (*Node, error) {
	n := s.Node(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoNode, id)
	}
	return n, nil
}

// AddChild appends an edge from parent to child.
func (s *Scene) AddChild(parent, child NodeID, op Operation, t *Transformation) error {
	p, err := s.mutable(parent)
	if err != nil {
		return err
	}
	if s.Node(child) == nil {
		return fmt.Errorf("%w: child %s", ErrNoNode, child)
	}
	if !op.Valid() {
		return fmt.Errorf("graph: add child: invalid operation %d", op)
	}
	p.Children = append(p.Children, Child{Node: child, Operation: op, Transform: t})
	s.touch(p)
	return nil
}

// SetChildren replaces the child list of parent.
func (s *Scene) SetChildren(parent NodeID, children []Child) error {
	p, err := s.mutable(parent)
	if err != nil {
		return err
	}
	p.Children = append([]Child(nil), children...)
	s.touch(p)
	return nil
}

func (s *Scene) edge(parent NodeID, index int) (*Node, error) {
	p, err := s.mutable(parent)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p.Children) {
		return nil, fmt.Errorf("graph: %s has no child %d", parent, index)
	}
	return p, nil
}

// SetOperation changes the operation of the index-th child edge of parent.
func (s *Scene) SetOperation(parent NodeID, index int, op Operation) error {
	p, err := s.edge(parent, index)
	if err != nil {
		return err
	}
	p.Children[index].Operation = op
	s.touch(p)
	return nil
}

// SetTransform changes the transformation of the index-th child edge.
func (s *Scene) SetTransform(parent NodeID, index int, t *Transformation) error {
	p, err := s.edge(parent, index)
	if err != nil {
		return err
	}
	p.Children[index].Transform = t
	s.touch(p)
	return nil
}

// SetBrushMesh points a brush at a different mesh.
func (s *Scene) SetBrushMesh(brush NodeID, mesh BrushMeshID) error {
	n, err := s.mutable(brush)
	if err != nil {
		return err
	}
	if n.Kind != KindBrush {
		return fmt.Errorf("graph: set brush mesh: %s is a %s", brush, n.Kind)
	}
	n.Data = BrushData{Mesh: mesh}
	s.touch(n)
	return nil
}

// SetVariants replaces the declared surface variants of a container.
func (s *Scene) SetVariants(id NodeID, variants []SurfaceVariant) error {
	n, err := s.mutable(id)
	if err != nil {
		return err
	}
	switch d := n.Data.(type) {
	case ModelData:
		d.Variants = variants
		n.Data = d
	case SubModelData:
		d.Variants = variants
		n.Data = d
	default:
		return fmt.Errorf("graph: set variants: %s is a %s", id, n.Kind)
	}
	s.touch(n)
	return nil
}

// SetSubModelCount records how many sub-model instances the host registered
// for a model.
func (s *Scene) SetSubModelCount(model NodeID, count int) error {
	n, err := s.mutable(model)
	if err != nil {
		return err
	}
	d, ok := n.Data.(ModelData)
	if !ok {
		return fmt.Errorf("graph: set submodel count: %s is a %s", model, n.Kind)
	}
	d.SubModelCount = count
	n.Data = d
	s.touch(n)
	return nil
}

// SelfHash returns the hash of the node's own semantic content, excluding
// its children.
func (s *Scene) SelfHash(n *Node) uint64 {
	w := NewHashWriter().Uint8(uint8(n.Kind))
	switch d := n.Data.(type) {
	case ModelData:
		writeVariants(w, d.Variants)
		w.Int(d.SubModelCount)
	case SubModelData:
		writeVariants(w, d.Variants)
	case BrushData:
		m := s.Mesh(d.Mesh)
		w.Bool(m != nil).Uint64(m.Hash())
	}
	return w.Sum()
}

func writeVariants(w *HashWriter, vs []SurfaceVariant) {
	w.Int(len(vs))
	for _, v := range vs {
		w.Uint64(v.Hash())
	}
}
