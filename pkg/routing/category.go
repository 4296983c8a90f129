// Package routing implements the category algebra and builds per-brush
// routing tables: finite-state lookups that carry a polygon fragment's
// classification against each relevant brush to its final category.
package routing

import (
	"fmt"

	"github.com/chazu/brushcsg/pkg/graph"
)

// Category classifies a polygon fragment relative to one brush.
type Category uint8

const (
	Inside         Category = 0 // strictly inside the brush
	Aligned        Category = 1 // on a brush face, facing the same way
	ReverseAligned Category = 2 // on a brush face, facing the opposite way
	Outside        Category = 3 // strictly outside the brush

	// None marks a route that could not be resolved.
	None Category = 0xFE
	// Invalid marks a combination that cannot occur. It propagates through
	// every table lookup.
	Invalid Category = 0xFF
)

// CategoryCount is the number of real categories.
const CategoryCount = 4

// Valid reports whether c is one of the four real categories.
func (c Category) Valid() bool { return c < CategoryCount }

func (c Category) String() string {
	switch c {
	case Inside:
		return "inside"
	case Aligned:
		return "aligned"
	case ReverseAligned:
		return "reverse-aligned"
	case Outside:
		return "outside"
	case None:
		return "none"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Categories lists the real categories in index order.
var Categories = [CategoryCount]Category{Inside, Aligned, ReverseAligned, Outside}

// Variant selects one of the two operation tables.
type Variant uint8

const (
	// Regular is used against brushes that precede the routed brush.
	Regular Variant = iota
	// RemoveOverlapping is used against brushes that follow the routed
	// brush; it hands shared coplanar faces to the later brush so only one
	// of two coincident faces survives.
	RemoveOverlapping
)

// VariantCount is the number of table variants.
const VariantCount = 2

func (v Variant) String() string {
	switch v {
	case Regular:
		return "regular"
	case RemoveOverlapping:
		return "remove-overlapping"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Combine looks up the category of (left op right). Out-of-range inputs
// yield Invalid.
func Combine(op graph.Operation, v Variant, left, right Category) Category {
	if !op.Valid() || v >= VariantCount || !left.Valid() || !right.Valid() {
		return Invalid
	}
	return operationTables[v][op][left][right]
}

// Owned is the category a face coplanar with a later brush's face takes when
// the two brushes meet under op: the later brush keeps the face, so the
// earlier one reads it as inside for union and subtraction and as outside
// for intersection.
func Owned(op graph.Operation) Category {
	if op == graph.Intersecting {
		return Outside
	}
	return Inside
}
