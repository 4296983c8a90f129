package surface

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSlot is returned when unregistering a slot that holds no
// content.
var ErrUnknownSlot = errors.New("surface: unknown slot")

// Slot indexes registered content.
type Slot int32

// NoSlot is the zero value of an unassigned slot.
const NoSlot Slot = -1

type regEntry struct {
	content *Content
	refs    int
}

// Registry stores surface content by content hash. Registering identical
// content returns the same slot and increments its count; a slot is freed
// and reused only when its count drops to zero. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []regEntry
	byHash  map[uint64]Slot
	free    []Slot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byHash: make(map[uint64]Slot)}
}

// Register adds one reference to c and returns its slot.
func (r *Registry) Register(c *Content) Slot {
	h := c.Hash()
	r.mu.Lock()
	defer r.mu.Unlock()

	registryRefs.Inc()
	if s, ok := r.byHash[h]; ok {
		r.entries[s].refs++
		return s
	}

	var s Slot
	if n := len(r.free); n > 0 {
		s = r.free[n-1]
		r.free = r.free[:n-1]
		r.entries[s] = regEntry{content: c, refs: 1}
	} else {
		s = Slot(len(r.entries))
		r.entries = append(r.entries, regEntry{content: c, refs: 1})
	}
	r.byHash[h] = s
	registrySlots.Inc()
	return s
}

// Unregister drops one reference to s. The slot is released when no
// references remain.
func (r *Registry) Unregister(s Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s < 0 || int(s) >= len(r.entries) || r.entries[s].refs == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, s)
	}
	e := &r.entries[s]
	e.refs--
	registryRefs.Dec()
	if e.refs > 0 {
		return nil
	}
	delete(r.byHash, e.content.Hash())
	e.content = nil
	r.free = append(r.free, s)
	registrySlots.Dec()
	return nil
}

// Get returns the content in s.
func (r *Registry) Get(s Slot) (*Content, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s < 0 || int(s) >= len(r.entries) || r.entries[s].refs == 0 {
		return nil, false
	}
	return r.entries[s].content, true
}

// RefCount returns the number of references to s.
func (r *Registry) RefCount(s Slot) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s < 0 || int(s) >= len(r.entries) {
		return 0
	}
	return r.entries[s].refs
}

// Lookup returns the slot holding content with the given hash.
func (r *Registry) Lookup(hash uint64) (Slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	return s, ok
}

// Len returns the number of occupied slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}
