package graph

import "fmt"

// NodeID identifies a node in a Scene. IDs are dense arena indices offset by
// one so that the zero value never names a node.
type NodeID uint32

// ZeroID is the invalid node ID.
const ZeroID NodeID = 0

// IsZero reports whether id is the invalid ID.
func (id NodeID) IsZero() bool { return id == ZeroID }

func (id NodeID) String() string {
	if id.IsZero() {
		return "#nil"
	}
	return fmt.Sprintf("#%d", uint32(id))
}

// NodeKind enumerates the types of nodes in the scene.
type NodeKind uint8

const (
	KindModel     NodeKind = iota // top-level mesh container
	KindSubModel                  // nested mesh container
	KindComposite                 // boolean combination of children
	KindBrush                     // convex solid leaf
)

func (k NodeKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindSubModel:
		return "submodel"
	case KindComposite:
		return "composite"
	case KindBrush:
		return "brush"
	default:
		return "unknown"
	}
}

// IsContainer reports whether nodes of this kind own mesh slots.
func (k NodeKind) IsContainer() bool {
	return k == KindModel || k == KindSubModel
}

// Operation is the boolean operation attached to the edge between a child
// and its parent. It is not a property of the child node itself.
type Operation uint8

const (
	Additive     Operation = iota // union
	Subtractive                   // difference
	Intersecting                  // intersection
)

// OperationCount is the number of valid operations.
const OperationCount = 3

func (o Operation) String() string {
	switch o {
	case Additive:
		return "additive"
	case Subtractive:
		return "subtractive"
	case Intersecting:
		return "intersecting"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
}

// Valid reports whether o is one of the three defined operations.
func (o Operation) Valid() bool { return o < OperationCount }

// ParseOperation converts a name ("add", "subtract", "intersect" and their
// long forms) to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "add", "additive", "union":
		return Additive, nil
	case "subtract", "subtractive", "difference":
		return Subtractive, nil
	case "intersect", "intersecting", "intersection":
		return Intersecting, nil
	}
	return 0, fmt.Errorf("graph: unknown operation %q", s)
}

// Child is one edge of the hierarchy.
type Child struct {
	Node      NodeID
	Operation Operation
	Transform *Transformation // nil means identity
}

// Node is the fundamental element of the scene.
type Node struct {
	ID       NodeID
	Kind     NodeKind
	Name     string
	Children []Child
	Data     NodeData

	rev uint64
}

// Revision increases every time the node is mutated through its Scene.
func (n *Node) Revision() uint64 { return n.rev }

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}
