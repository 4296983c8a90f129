package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/intersect"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrConsistency reports intersection data that disagrees with the
	// tree, such as an entry naming a brush the tree does not contain.
	ErrConsistency = errors.New("routing: inconsistent intersection data")
	// ErrTooManyGroups reports a state explosion beyond MaxGroups.
	ErrTooManyGroups = errors.New("routing: too many category groups")
)

// DefaultCacheSize is the number of tables a Builder keeps.
const DefaultCacheSize = 4096

// Builder builds routing tables and caches them by
// hash(model hash, brush path, intersection hash). It is safe for
// concurrent use.
type Builder struct {
	cache  *lru.Cache[uint64, *RoutingTable]
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewBuilder returns a builder caching up to size tables.
func NewBuilder(size int, logger *slog.Logger) (*Builder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	c, err := lru.New[uint64, *RoutingTable](size)
	if err != nil {
		return nil, fmt.Errorf("routing: create cache: %w", err)
	}
	return &Builder{cache: c, logger: logger}, nil
}

// Stats returns cache hits and misses since creation.
func (b *Builder) Stats() (hits, misses int64) {
	return b.hits.Load(), b.misses.Load()
}

// Purge empties the cache.
func (b *Builder) Purge() { b.cache.Purge() }

// CacheKey returns the key under which the table of brush is cached.
func CacheKey(tree *compact.Tree, inter *intersect.Result, brush int) uint64 {
	return graph.Combine(tree.ModelHash, tree.Brushes[brush].Path, inter.Brushes[brush].Hash)
}

// Build returns the routing table of brush, from the cache when possible.
func (b *Builder) Build(tree *compact.Tree, inter *intersect.Result, brush int) (*RoutingTable, error) {
	if brush < 0 || brush >= len(tree.Brushes) || brush >= len(inter.Brushes) {
		return nil, fmt.Errorf("%w: brush %d not in tree of %s", ErrConsistency, brush, tree.Model)
	}
	key := CacheKey(tree, inter, brush)
	if t, ok := b.cache.Get(key); ok {
		b.hits.Add(1)
		return t, nil
	}
	b.misses.Add(1)

	t, err := build(tree, inter, brush)
	if err != nil {
		return nil, err
	}
	b.cache.Add(key, t)
	b.logger.Debug("routing: built table",
		slog.String("model", tree.Model.String()),
		slog.Int("brush", brush),
		slog.Int("nodes", len(t.Nodes)),
		slog.Int("rows", len(t.Rows)))
	return t, nil
}

// ---------------------------------------------------------------------------
// Expression walk
// ---------------------------------------------------------------------------

type eventKind uint8

const (
	evEnter eventKind = iota
	evLeaf
	evExit
)

// event is one step of the expression walk. Routed leaves carry their
// position among the routed nodes; every other leaf is the constant Outside.
type event struct {
	kind   eventKind
	op     graph.Operation
	routed int
}

// step applies one event. A leaf's value is combined through the table of
// its variant; a RemoveOverlapping brush nested below the point where it
// meets the routed brush instead has an Aligned value read as the owned
// category of the joining operation.
func step(stack []Category, ev event, value Category, n RoutingNode) []Category {
	switch ev.kind {
	case evEnter:
		return append(stack, Outside)
	case evLeaf:
		top := len(stack) - 1
		if n.Variant == RemoveOverlapping && n.Owner != ev.op {
			if value == Aligned {
				value = Owned(n.Owner)
			}
			stack[top] = Combine(ev.op, Regular, stack[top], value)
			break
		}
		stack[top] = Combine(ev.op, n.Variant, stack[top], value)
	case evExit:
		val := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top := len(stack) - 1
		stack[top] = Combine(ev.op, Regular, stack[top], val)
	}
	return stack
}

// runConstant applies events that contain no routed leaf.
func runConstant(stack []Category, events []event) []Category {
	for _, ev := range events {
		stack = step(stack, ev, Outside, RoutingNode{Variant: Regular})
	}
	return stack
}

// build folds the model expression for one brush. A state is the stack of
// pending accumulators, one per open composite, at the position of a routed
// leaf. States reaching the same routed leaf are deduplicated into groups in
// first-seen order; row g of routed node k maps the incoming category to the
// group at node k+1, or to the final category at the last node.
func build(tree *compact.Tree, inter *intersect.Result, brush int) (*RoutingTable, error) {
	self := tree.Brushes[brush]
	nodes := []RoutingNode{{
		NodeIndex: self.NodeIndex,
		Brush:     brush,
		Path:      self.Path,
		Key:       inter.World[brush].Key,
		Variant:   Regular,
		Owner:     tree.Nodes[self.NodeIndex].Operation,
	}}
	selfOrder := tree.Nodes[self.NodeIndex].Order

	for _, e := range inter.Brushes[brush].Entries {
		if e.Other < 0 || e.Other >= len(tree.Brushes) || tree.Brushes[e.Other].NodeIndex != e.OtherNode {
			return nil, fmt.Errorf("%w: brush %d references brush %d (node %d) absent from tree",
				ErrConsistency, brush, e.Other, e.OtherNode)
		}
		if e.Other == brush {
			return nil, fmt.Errorf("%w: brush %d intersects itself", ErrConsistency, brush)
		}
		if inter.Hidden(e.Other) {
			continue
		}
		v := Regular
		if tree.Nodes[e.OtherNode].Order > selfOrder {
			v = RemoveOverlapping
		}
		join := tree.ChildToward(tree.CommonAncestor(self.NodeIndex, e.OtherNode), e.OtherNode)
		nodes = append(nodes, RoutingNode{
			NodeIndex: e.OtherNode,
			Brush:     e.Other,
			Path:      tree.Brushes[e.Other].Path,
			Key:       e.OtherKey,
			Variant:   v,
			Owner:     tree.Nodes[join].Operation,
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		return tree.Nodes[nodes[i].NodeIndex].Order < tree.Nodes[nodes[j].NodeIndex].Order
	})

	routedPos := make(map[int]int, len(nodes))
	marked := make(map[int]bool)
	for k, n := range nodes {
		routedPos[n.NodeIndex] = k
		for i := n.NodeIndex; i >= 0 && !marked[i]; i = tree.Nodes[i].Parent {
			marked[i] = true
		}
	}

	var events []event
	routedAt := make([]int, len(nodes))
	var walk func(i int)
	walk = func(i int) {
		for _, c := range tree.Children(i) {
			n := tree.Nodes[c]
			if k, ok := routedPos[c]; ok {
				routedAt[k] = len(events)
				events = append(events, event{kind: evLeaf, op: n.Operation, routed: k})
				continue
			}
			if !marked[c] {
				events = append(events, event{kind: evLeaf, op: n.Operation, routed: -1})
				continue
			}
			events = append(events, event{kind: evEnter, op: n.Operation, routed: -1})
			walk(c)
			events = append(events, event{kind: evExit, op: n.Operation, routed: -1})
		}
	}
	walk(0)

	groups := [][]Category{runConstant([]Category{Outside}, events[:routedAt[0]])}
	var rows []CategoryRoutingRow
	lookups := make([]Lookup, len(nodes))

	for k := range nodes {
		last := k == len(nodes)-1
		end := len(events)
		if !last {
			end = routedAt[k+1]
		}
		tail := events[routedAt[k]+1 : end]

		var next [][]Category
		index := make(map[string]int)
		start := len(rows)
		for _, s := range groups {
			var row CategoryRoutingRow
			for _, c := range Categories {
				st := append([]Category(nil), s...)
				st = step(st, events[routedAt[k]], c, nodes[k])
				st = runConstant(st, tail)
				if last {
					row[c] = CategoryGroupIndex(st[0])
					continue
				}
				key := string(stackKey(st))
				g, ok := index[key]
				if !ok {
					g = len(next)
					index[key] = g
					next = append(next, st)
				}
				row[c] = CategoryGroupIndex(g)
			}
			rows = append(rows, row)
		}
		lookups[k] = Lookup{Start: start, End: len(rows)}
		if len(next) > MaxGroups {
			return nil, fmt.Errorf("%w: %d groups at routed node %d of brush %d",
				ErrTooManyGroups, len(next), k+1, brush)
		}
		groups = next
	}

	return newTable(brush, self.NodeIndex, self.Path, nodes, rows, lookups), nil
}

func stackKey(st []Category) []byte {
	b := make([]byte, len(st))
	for i, c := range st {
		b[i] = byte(c)
	}
	return b
}
