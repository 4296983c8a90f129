package change

import (
	"sync"

	"github.com/chazu/brushcsg/pkg/graph"
)

// ModelChange describes one model whose subtree hash differs from the value
// recorded in the previous pass.
type ModelChange struct {
	Model    graph.NodeID
	Hash     uint64
	Previous uint64
	// First is true when no hash was recorded for the model.
	First bool
	// Removed is true when the model left the scene.
	Removed bool
}

// Tracker records the last seen hash per model and sub-model. Presence in
// the map, not the hash value, marks a recorded hash.
type Tracker struct {
	mu       sync.Mutex
	hasher   *Hasher
	recorded map[graph.NodeID]uint64
	changed  map[graph.NodeID]bool
	subs     map[graph.NodeID]uint64
	subDirty map[graph.NodeID]bool
}

// NewTracker returns a tracker with nothing recorded.
func NewTracker() *Tracker {
	return &Tracker{
		hasher:   NewHasher(),
		recorded: make(map[graph.NodeID]uint64),
		changed:  make(map[graph.NodeID]bool),
		subs:     make(map[graph.NodeID]uint64),
		subDirty: make(map[graph.NodeID]bool),
	}
}

// Detect hashes every model in scene, updates the recorded hashes and the
// per-model changed flags, and returns the models that changed in scene
// order followed by removed models.
func (t *Tracker) Detect(scene *graph.Scene) []ModelChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hasher.Begin(scene)
	var out []ModelChange
	seen := make(map[graph.NodeID]bool)
	for _, id := range scene.Models() {
		seen[id] = true
		h := t.hasher.Hash(id)
		prev, ok := t.recorded[id]
		t.changed[id] = !ok || prev != h
		if t.changed[id] {
			out = append(out, ModelChange{Model: id, Hash: h, Previous: prev, First: !ok})
			t.recorded[id] = h
		}
		t.detectSubModels(scene, id)
	}
	for id, prev := range t.recorded {
		if !seen[id] {
			out = append(out, ModelChange{Model: id, Previous: prev, Removed: true})
			delete(t.recorded, id)
			delete(t.changed, id)
		}
	}
	t.hasher.Prune()
	return out
}

// detectSubModels refreshes the change flags of every sub-model under root.
func (t *Tracker) detectSubModels(scene *graph.Scene, root graph.NodeID) {
	visited := make(map[graph.NodeID]bool)
	var walk func(id graph.NodeID)
	walk = func(id graph.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := scene.Node(id)
		if n == nil {
			return
		}
		if n.Kind == graph.KindSubModel {
			h := t.hasher.Hash(id)
			prev, ok := t.subs[id]
			t.subDirty[id] = !ok || prev != h
			t.subs[id] = h
		}
		for _, c := range n.Children {
			walk(c.Node)
		}
	}
	walk(root)
}

// Changed reports whether the model changed in the last Detect.
func (t *Tracker) Changed(model graph.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed[model]
}

// SubModelChanged reports whether the sub-model changed in the last Detect.
func (t *Tracker) SubModelChanged(id graph.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subDirty[id]
}

// Recorded returns the hash recorded for model.
func (t *Tracker) Recorded(model graph.NodeID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.recorded[model]
	return h, ok
}

// Forget drops the recorded hash of model so the next Detect reports it as
// changed.
func (t *Tracker) Forget(model graph.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.recorded, model)
}

// HashStats reports the hasher work done in the last Detect.
func (t *Tracker) HashStats() (selfComputed, recombined int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasher.Stats()
}
