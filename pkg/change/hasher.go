// Package change detects which models need re-evaluation by hashing the
// scene hierarchy bottom-up and comparing against the previous pass.
package change

import (
	"github.com/chazu/brushcsg/pkg/graph"
)

var (
	missingHash = graph.NewHashWriter().String("missing").Sum()
	cycleHash   = graph.NewHashWriter().String("cycle").Sum()
)

// entry is the memo for one node. valid is the epoch the entry was last
// verified in; a hash value of 0 carries no special meaning.
type entry struct {
	valid    uint64
	visiting bool

	rev  uint64
	mesh *graph.BrushMesh
	self uint64

	children []uint64
	hash     uint64
}

// Hasher computes subtree content hashes with per-node memoization.
// A node's subtree hash is combine(self, (child hash, transform hash,
// operation)...). Self hashes are recomputed only when the node revision or
// the referenced brush mesh changes; subtree hashes are recombined only when
// a child hash differs from the cached one.
//
// A Hasher is not safe for concurrent use.
type Hasher struct {
	entries map[graph.NodeID]*entry
	epoch   uint64
	scene   *graph.Scene

	selfComputed int
	recombined   int
}

// NewHasher returns an empty hasher.
func NewHasher() *Hasher {
	return &Hasher{entries: make(map[graph.NodeID]*entry)}
}

// Begin starts a new pass over scene. Hashes memoized in earlier passes are
// re-verified on first access in this pass.
func (h *Hasher) Begin(scene *graph.Scene) {
	h.epoch++
	h.scene = scene
	h.selfComputed = 0
	h.recombined = 0
}

// Stats reports how many self hashes and subtree combinations were computed
// since Begin.
func (h *Hasher) Stats() (selfComputed, recombined int) {
	return h.selfComputed, h.recombined
}

// Hash returns the subtree hash of id. It never fails: missing nodes and
// nodes reached through a cycle hash to fixed tags.
func (h *Hasher) Hash(id graph.NodeID) uint64 {
	if h.scene == nil {
		return missingHash
	}
	n := h.scene.Node(id)
	if n == nil {
		delete(h.entries, id)
		return missingHash
	}
	e := h.entries[id]
	if e == nil {
		e = &entry{}
		h.entries[id] = e
	}
	if e.valid == h.epoch {
		return e.hash
	}
	if e.visiting {
		return cycleHash
	}
	e.visiting = true
	defer func() { e.visiting = false }()

	mesh := h.scene.BrushMesh(n)
	selfChanged := e.valid == 0 || e.rev != n.Revision() || e.mesh != mesh
	if selfChanged {
		e.self = h.scene.SelfHash(n)
		e.rev = n.Revision()
		e.mesh = mesh
		h.selfComputed++
	}

	// Each child contributes its subtree hash, transform hash and operation.
	parts := make([]uint64, 0, 3*len(n.Children))
	for _, c := range n.Children {
		parts = append(parts, h.Hash(c.Node), c.Transform.Hash(), uint64(c.Operation))
	}
	if selfChanged || !equal(parts, e.children) {
		e.children = parts
		e.hash = graph.Combine(append([]uint64{e.self}, parts...)...)
		h.recombined++
	}
	e.valid = h.epoch
	return e.hash
}

// Prune drops memo entries for nodes not visited in the current pass.
func (h *Hasher) Prune() {
	for id, e := range h.entries {
		if e.valid != h.epoch {
			delete(h.entries, id)
		}
	}
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
