// Package assembly writes generated surfaces into a model's fixed set of
// mesh buffers, one per declared (container, variant) pair.
package assembly

import (
	"fmt"
	"sort"

	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/surface"
)

// MeshKey identifies one mesh buffer of a model: the owning container, the
// hash of its surface settings and the mesh kind.
type MeshKey struct {
	Container    graph.NodeID
	SettingsHash uint64
	SubKey       graph.MeshKind
}

// KeyOf returns the mesh key of a surface destination.
func KeyOf(k surface.Key) MeshKey {
	return MeshKey{Container: k.Container, SettingsHash: k.Variant.Hash(), SubKey: k.Variant.Kind}
}

func (k MeshKey) String() string {
	return fmt.Sprintf("%s/%s/%016x", k.Container, k.SubKey, k.SettingsHash)
}

// Layout is the declared mesh capacity of one model, known before any CSG
// work starts.
type Layout struct {
	Model    graph.NodeID
	Declared []surface.Key // sorted

	declared map[surface.Key]struct{}
}

// NewLayout collects the declared variants of model and every sub-model
// reachable from it.
func NewLayout(scene *graph.Scene, model graph.NodeID) (*Layout, error) {
	root := scene.Node(model)
	if root == nil || root.Kind != graph.KindModel {
		return nil, fmt.Errorf("assembly: layout: %s is not a model: %w", model, compact.ErrStructural)
	}
	l := &Layout{Model: model, declared: make(map[surface.Key]struct{})}
	seen := make(map[graph.NodeID]bool)

	var visit func(n *graph.Node)
	visit = func(n *graph.Node) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		for _, v := range graph.VariantsOf(n) {
			k := surface.Key{Container: n.ID, Variant: v}
			if _, dup := l.declared[k]; !dup {
				l.declared[k] = struct{}{}
				l.Declared = append(l.Declared, k)
			}
		}
		for _, c := range n.Children {
			if child := scene.Node(c.Node); child != nil {
				visit(child)
			}
		}
	}
	visit(root)

	sort.Slice(l.Declared, func(i, j int) bool { return l.Declared[i].Less(l.Declared[j]) })
	return l, nil
}

// MaxMeshCount returns the number of mesh buffers the host must allocate
// for model.
func MaxMeshCount(scene *graph.Scene, model graph.NodeID) (int, error) {
	l, err := NewLayout(scene, model)
	if err != nil {
		return 0, err
	}
	return l.Max(), nil
}

// Max returns the number of declared (container, variant) pairs.
func (l *Layout) Max() int { return len(l.Declared) }

// Declares reports whether k is one of the declared pairs.
func (l *Layout) Declares(k surface.Key) bool {
	_, ok := l.declared[k]
	return ok
}
