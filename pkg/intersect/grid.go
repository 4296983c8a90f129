package intersect

import (
	"math"
	"sort"

	"github.com/deadsy/sdfx/sdf"
)

// Partition is the broad-phase contract the index relies on: insert an item
// with its bounds, then query for items whose bounds may overlap a box.
// Query may return false positives but never misses an overlapping item.
type Partition interface {
	Insert(id int, bounds sdf.Box3)
	Query(bounds sdf.Box3) []int
	Reset()
}

// CellKey addresses one cell of the uniform grid.
type CellKey struct {
	X, Y, Z int32
}

// Grid is a uniform spatial hash. Items spanning more than maxCells cells
// are kept in an oversize list that every query returns.
type Grid struct {
	cellSize float64
	maxCells int

	cells    map[CellKey][]int
	oversize []int
	all      []int
}

var _ Partition = (*Grid)(nil)

// NewGrid returns an empty grid.
func NewGrid(cellSize float64, maxCells int) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	if maxCells <= 0 {
		maxCells = 64
	}
	return &Grid{cellSize: cellSize, maxCells: maxCells, cells: make(map[CellKey][]int)}
}

// cellRange returns the cells covered by b. Bounds that are not finite,
// inverted, outside the int32 cell range or larger than maxCells report
// math.MaxInt cells so callers treat them as oversize.
func (g *Grid) cellRange(b sdf.Box3) (lo, hi CellKey, count int) {
	var l, h [3]int32
	span := 1.0
	for i, r := range [3][2]float64{{b.Min.X, b.Max.X}, {b.Min.Y, b.Max.Y}, {b.Min.Z, b.Max.Z}} {
		fl := math.Floor(r[0] / g.cellSize)
		fh := math.Floor(r[1] / g.cellSize)
		// NaN fails every comparison below.
		if !(fl >= math.MinInt32 && fh <= math.MaxInt32 && fl <= fh) {
			return lo, hi, math.MaxInt
		}
		span *= fh - fl + 1
		l[i], h[i] = int32(fl), int32(fh)
	}
	if span > float64(g.maxCells) {
		return lo, hi, math.MaxInt
	}
	lo = CellKey{l[0], l[1], l[2]}
	hi = CellKey{h[0], h[1], h[2]}
	return lo, hi, int(span)
}

func (g *Grid) Insert(id int, b sdf.Box3) {
	g.all = append(g.all, id)
	lo, hi, n := g.cellRange(b)
	if n > g.maxCells {
		g.oversize = append(g.oversize, id)
		return
	}
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				k := CellKey{x, y, z}
				g.cells[k] = append(g.cells[k], id)
			}
		}
	}
}

// Query returns candidate ids in ascending order without duplicates.
func (g *Grid) Query(b sdf.Box3) []int {
	lo, hi, n := g.cellRange(b)
	if n > g.maxCells {
		return sortedUnique(append([]int(nil), g.all...))
	}
	out := append([]int(nil), g.oversize...)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				out = append(out, g.cells[CellKey{x, y, z}]...)
			}
		}
	}
	return sortedUnique(out)
}

func (g *Grid) Reset() {
	g.cells = make(map[CellKey][]int)
	g.oversize = g.oversize[:0]
	g.all = g.all[:0]
}

// Len returns the number of inserted items.
func (g *Grid) Len() int { return len(g.all) }

func sortedUnique(ids []int) []int {
	sort.Ints(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
