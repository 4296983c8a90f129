package routing

import "github.com/chazu/brushcsg/pkg/graph"

const (
	in = Inside
	al = Aligned
	ra = ReverseAligned
	ou = Outside
)

// operationTables[variant][op][left][right] is the category of a fragment
// after combining an accumulated left operand with a right operand. Rows are
// the left category, columns the right category, both in the order Inside,
// Aligned, ReverseAligned, Outside.
//
// The RemoveOverlapping tables differ only in the Aligned column: a face
// coplanar with a later brush's face is owned by that brush, so it is read
// as Inside for union and subtraction and as Outside for intersection.
var operationTables = [VariantCount][graph.OperationCount][CategoryCount][CategoryCount]Category{
	Regular: {
		graph.Additive: {
			{in, in, in, in},
			{in, al, in, al},
			{in, in, ra, ra},
			{in, al, ra, ou},
		},
		graph.Subtractive: {
			{ou, ra, al, in},
			{ou, ou, al, al},
			{ou, ra, ou, ra},
			{ou, ou, ou, ou},
		},
		graph.Intersecting: {
			{in, al, ra, ou},
			{al, al, ou, ou},
			{ra, ou, ra, ou},
			{ou, ou, ou, ou},
		},
	},
	RemoveOverlapping: {
		graph.Additive: {
			{in, in, in, in},
			{in, in, in, al},
			{in, in, ra, ra},
			{in, in, ra, ou},
		},
		graph.Subtractive: {
			{ou, ou, al, in},
			{ou, ou, al, al},
			{ou, ou, ou, ra},
			{ou, ou, ou, ou},
		},
		graph.Intersecting: {
			{in, ou, ra, ou},
			{al, ou, ou, ou},
			{ra, ou, ra, ou},
			{ou, ou, ou, ou},
		},
	},
}
