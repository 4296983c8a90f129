package routing

import "github.com/chazu/brushcsg/pkg/graph"

// CategoryGroupIndex is either a group index at the next routed node or, in
// the rows of the last routed node, a final Category.
type CategoryGroupIndex uint8

// MaxGroups bounds the number of distinct states per routed node.
const MaxGroups = 255

// CategoryRoutingRow maps an incoming category (index 0..3 = Inside,
// Aligned, ReverseAligned, Outside) to a destination.
type CategoryRoutingRow [CategoryCount]CategoryGroupIndex

// Identity maps every category to itself.
func Identity() CategoryRoutingRow {
	return CategoryRoutingRow{
		CategoryGroupIndex(Inside),
		CategoryGroupIndex(Aligned),
		CategoryGroupIndex(ReverseAligned),
		CategoryGroupIndex(Outside),
	}
}

// OperationRow returns the row of an operation table for a fixed left
// category, indexed by the right category.
func OperationRow(op graph.Operation, v Variant, left Category) CategoryRoutingRow {
	var r CategoryRoutingRow
	for _, c := range Categories {
		r[c] = CategoryGroupIndex(Combine(op, v, left, c))
	}
	return r
}

// Apply returns the destination of c. Invalid and None pass through.
func (r CategoryRoutingRow) Apply(c Category) Category {
	if !c.Valid() {
		return c
	}
	return Category(r[c])
}

// Compose returns the row equivalent to applying r, then next. Both rows
// must hold categories, not group indices.
func (r CategoryRoutingRow) Compose(next CategoryRoutingRow) CategoryRoutingRow {
	var out CategoryRoutingRow
	for _, c := range Categories {
		out[c] = CategoryGroupIndex(next.Apply(r.Apply(c)))
	}
	return out
}

// IsIdentity reports whether r maps every category to itself.
func (r CategoryRoutingRow) IsIdentity() bool {
	return r == Identity()
}
