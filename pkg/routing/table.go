package routing

import (
	"fmt"
	"strings"

	"github.com/chazu/brushcsg/pkg/graph"
)

// RoutingNode is one brush a table routes fragments against, in expression
// order.
type RoutingNode struct {
	NodeIndex int
	Brush     int
	Path      uint64
	Key       uint64
	Variant   Variant
	// Owner is the operation under which this brush's branch joins the
	// routed brush at their common ancestor.
	Owner graph.Operation
}

// Lookup is the half-open row range [Start, End) of one routed node; the
// row for group g is Rows[Start+g].
type Lookup struct {
	Start int
	End   int
}

// RoutingTable routes the polygon fragments of one brush. It is immutable
// once built and may be shared between goroutines.
type RoutingTable struct {
	Brush     int
	NodeIndex int
	Path      uint64

	Nodes   []RoutingNode
	Rows    []CategoryRoutingRow
	Lookups []Lookup
	Hash    uint64

	byNode map[int]int // node index -> position in Nodes
}

func newTable(brush, nodeIndex int, path uint64, nodes []RoutingNode, rows []CategoryRoutingRow, lookups []Lookup) *RoutingTable {
	t := &RoutingTable{
		Brush:     brush,
		NodeIndex: nodeIndex,
		Path:      path,
		Nodes:     nodes,
		Rows:      rows,
		Lookups:   lookups,
		byNode:    make(map[int]int, len(nodes)),
	}
	w := graph.NewHashWriter().Uint64(path).Int(len(nodes))
	for k, n := range nodes {
		t.byNode[n.NodeIndex] = k
		w.Int(n.NodeIndex).Uint64(n.Key).Uint8(uint8(n.Variant)).Uint8(uint8(n.Owner))
		w.Int(lookups[k].Start).Int(lookups[k].End)
	}
	for _, r := range rows {
		w.Uint8(uint8(r[0])).Uint8(uint8(r[1])).Uint8(uint8(r[2])).Uint8(uint8(r[3]))
	}
	t.Hash = w.Sum()
	return t
}

// TryGetRoute returns the row for a fragment that arrives at the routed node
// with the given node index carrying group. Unknown nodes and out-of-range
// groups return the identity row and false.
func (t *RoutingTable) TryGetRoute(nodeIndex, group int) (CategoryRoutingRow, bool) {
	k, ok := t.byNode[nodeIndex]
	if !ok {
		return Identity(), false
	}
	l := t.Lookups[k]
	if group < 0 || l.Start+group >= l.End {
		return Identity(), false
	}
	return t.Rows[l.Start+group], true
}

// Position returns the position of the routed node with the given node
// index in Nodes.
func (t *RoutingTable) Position(nodeIndex int) (int, bool) {
	k, ok := t.byNode[nodeIndex]
	return k, ok
}

// Route carries a fragment through the table. cats[k] is the fragment's
// category relative to Nodes[k]. It returns false when the route cannot be
// resolved; the fragment must then be excluded.
func (t *RoutingTable) Route(cats []Category) (Category, bool) {
	if len(cats) != len(t.Nodes) || len(cats) == 0 {
		return None, false
	}
	group := 0
	for k, n := range t.Nodes {
		row, ok := t.TryGetRoute(n.NodeIndex, group)
		if !ok {
			return None, false
		}
		c := cats[k]
		if !c.Valid() {
			return Invalid, false
		}
		next := row[c]
		if k == len(t.Nodes)-1 {
			final := Category(next)
			return final, final.Valid()
		}
		group = int(next)
	}
	return None, false
}

// GroupCount returns the number of groups at routed node k.
func (t *RoutingTable) GroupCount(k int) int {
	return t.Lookups[k].End - t.Lookups[k].Start
}

// String renders the table for debugging.
func (t *RoutingTable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "routing table brush=%d node=%d hash=%016x\n", t.Brush, t.NodeIndex, t.Hash)
	for k, n := range t.Nodes {
		last := k == len(t.Nodes)-1
		fmt.Fprintf(&b, "  [%d] node=%d brush=%d %s\n", k, n.NodeIndex, n.Brush, n.Variant)
		l := t.Lookups[k]
		for g := l.Start; g < l.End; g++ {
			fmt.Fprintf(&b, "    group %d:", g-l.Start)
			for _, c := range Categories {
				if last {
					fmt.Fprintf(&b, " %s->%s", c, Category(t.Rows[g][c]))
				} else {
					fmt.Fprintf(&b, " %s->g%d", c, t.Rows[g][c])
				}
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
