package intersect

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Relation classifies a touching or overlapping pair from one brush's point
// of view.
type Relation uint8

const (
	Partial         Relation = iota // volumes overlap or touch
	SelfInsideOther                 // this brush lies wholly inside the other
	OtherInsideSelf                 // the other brush lies wholly inside this one
)

func (r Relation) String() string {
	switch r {
	case Partial:
		return "partial"
	case SelfInsideOther:
		return "self-inside-other"
	case OtherInsideSelf:
		return "other-inside-self"
	default:
		return fmt.Sprintf("Relation(%d)", uint8(r))
	}
}

// Entry is one intersecting brush.
type Entry struct {
	Other     int // brush index
	OtherNode int // node index
	OtherKey  uint64
	Relation  Relation
}

// BrushIntersections lists the brushes intersecting one brush, sorted by
// (OtherKey, OtherNode).
type BrushIntersections struct {
	Brush   int
	Entries []Entry
	Hidden  bool
	Hash    uint64
}

// Result is the output of one index update.
type Result struct {
	World   []WorldBrush
	Brushes []BrushIntersections
	Pairs   int
}

// Hidden reports whether brush b was culled.
func (r *Result) Hidden(b int) bool { return r.Brushes[b].Hidden }

// Config controls the broad and narrow phases.
type Config struct {
	CellSize         float64
	MaxCellsPerBrush int
	Epsilon          float64
}

// DefaultConfig returns the index defaults.
func DefaultConfig() Config {
	return Config{CellSize: 4, MaxCellsPerBrush: 512, Epsilon: graph.PlaneEpsilon}
}

// Index computes brush intersections for flattened models. It holds no
// state between updates except its configuration, so a single Index may
// serve concurrent updates of different models.
type Index struct {
	cfg    Config
	logger *slog.Logger
}

// NewIndex returns an index using cfg.
func NewIndex(cfg Config, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = graph.PlaneEpsilon
	}
	return &Index{cfg: cfg, logger: logger}
}

// Update transforms every brush of tree into model space and classifies all
// touching pairs. The result does not depend on brush insertion order.
func (ix *Index) Update(tree *compact.Tree, meshes MeshSource) (*Result, error) {
	res := &Result{
		World:   make([]WorldBrush, len(tree.Brushes)),
		Brushes: make([]BrushIntersections, len(tree.Brushes)),
	}
	grid := NewGrid(ix.cfg.CellSize, ix.cfg.MaxCellsPerBrush)
	for b, d := range tree.Brushes {
		mesh := meshes.Mesh(d.Mesh)
		if !mesh.Built() {
			return nil, fmt.Errorf("intersect: brush %s: %w: mesh %d missing or unvalidated", d.NodeID, compact.ErrStructural, d.Mesh)
		}
		res.World[b] = NewWorldBrush(tree, b, mesh)
		res.Brushes[b].Brush = b
		grid.Insert(b, res.World[b].Bounds)
	}

	eps := ix.cfg.Epsilon
	for i := range res.World {
		a := &res.World[i]
		for _, j := range grid.Query(pad(a.Bounds, eps)) {
			if j <= i {
				continue
			}
			bw := &res.World[j]
			if !ix.touching(a, bw) {
				continue
			}
			aInB := insideAll(a.Vertices, bw, eps)
			bInA := insideAll(bw.Vertices, a, eps)
			res.Brushes[i].Entries = append(res.Brushes[i].Entries, Entry{
				Other: j, OtherNode: bw.NodeIndex, OtherKey: bw.Key, Relation: relation(aInB, bInA),
			})
			res.Brushes[j].Entries = append(res.Brushes[j].Entries, Entry{
				Other: i, OtherNode: a.NodeIndex, OtherKey: a.Key, Relation: relation(bInA, aInB),
			})
			res.Pairs++
		}
	}

	markHidden(tree, res, eps)

	for b := range res.Brushes {
		bi := &res.Brushes[b]
		sort.Slice(bi.Entries, func(x, y int) bool {
			ex, ey := bi.Entries[x], bi.Entries[y]
			if ex.OtherKey != ey.OtherKey {
				return ex.OtherKey < ey.OtherKey
			}
			return ex.OtherNode < ey.OtherNode
		})
		bi.Hash = res.hashOf(b)
	}

	ix.logger.Debug("intersect: update",
		slog.String("model", tree.Model.String()),
		slog.Int("brushes", len(tree.Brushes)),
		slog.Int("pairs", res.Pairs))
	return res, nil
}

func (r *Result) hashOf(b int) uint64 {
	bi := r.Brushes[b]
	w := graph.NewHashWriter().Uint64(r.World[b].Key).Bool(bi.Hidden).Int(len(bi.Entries))
	for _, e := range bi.Entries {
		w.Uint64(e.OtherKey).Int(e.OtherNode).Uint8(uint8(e.Relation)).Bool(r.Brushes[e.Other].Hidden)
	}
	return w.Sum()
}

func relation(selfInOther, otherInSelf bool) Relation {
	switch {
	case selfInOther:
		return SelfInsideOther
	case otherInSelf:
		return OtherInsideSelf
	default:
		return Partial
	}
}

// touching runs the narrow phase: bounding boxes first, then a search for a
// separating face plane of either polytope. Shared faces count as touching.
// Edge-edge separating axes are not tested, so a few distant pairs may be
// reported; later phases classify them as disjoint.
func (ix *Index) touching(a, b *WorldBrush) bool {
	eps := ix.cfg.Epsilon
	if !overlaps(a.Bounds, b.Bounds, eps) {
		return false
	}
	return !separated(a.Planes, b.Vertices, eps) && !separated(b.Planes, a.Vertices, eps)
}

func separated(planes []graph.Plane, verts []v3.Vec, eps float64) bool {
	for _, pl := range planes {
		all := true
		for _, v := range verts {
			if pl.Distance(v) <= eps {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func insideAll(verts []v3.Vec, w *WorldBrush, eps float64) bool {
	for _, v := range verts {
		if !w.Contains(v, eps) {
			return false
		}
	}
	return true
}

func overlaps(a, b sdf.Box3, eps float64) bool {
	return a.Min.X <= b.Max.X+eps && b.Min.X <= a.Max.X+eps &&
		a.Min.Y <= b.Max.Y+eps && b.Min.Y <= a.Max.Y+eps &&
		a.Min.Z <= b.Max.Z+eps && b.Min.Z <= a.Max.Z+eps
}

func pad(b sdf.Box3, eps float64) sdf.Box3 {
	e := v3.Vec{X: eps, Y: eps, Z: eps}
	return sdf.Box3{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// markHidden culls brushes whose volume is absorbed by a containing brush.
// Brush x is hidden by y when x lies inside y, both reach the root through
// Additive edges only, and no non-Additive edge is applied between the
// earlier of the two and the point where the later one joins their common
// ancestor. For identical brushes only the earlier is hidden.
func markHidden(tree *compact.Tree, res *Result, eps float64) {
	for x := range res.Brushes {
		xi := res.World[x].NodeIndex
		if !tree.AllAdditive(xi) {
			continue
		}
		for _, e := range res.Brushes[x].Entries {
			if e.Relation != SelfInsideOther {
				continue
			}
			if x > e.Other && insideAll(res.World[e.Other].Vertices, &res.World[x], eps) {
				continue // identical: the later one stays
			}
			if !tree.AllAdditive(e.OtherNode) || !additiveBetween(tree, xi, e.OtherNode) {
				continue
			}
			res.Brushes[x].Hidden = true
			break
		}
	}
}

// additiveBetween reports whether every node in the preorder range from the
// earlier of i and j up to the end of the later one's branch under their
// common ancestor is attached with an Additive edge.
func additiveBetween(tree *compact.Tree, i, j int) bool {
	first, last := i, j
	if tree.Nodes[j].Order < tree.Nodes[i].Order {
		first, last = j, i
	}
	lca := tree.CommonAncestor(i, j)
	branch := tree.ChildToward(lca, last)
	if branch < 0 {
		return false
	}
	for o := tree.Nodes[first].Order + 1; o <= tree.Nodes[branch].End; o++ {
		if tree.Nodes[tree.Preorder[o]].Operation != graph.Additive {
			return false
		}
	}
	return true
}
