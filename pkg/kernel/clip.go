package kernel

import (
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/routing"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ClipInput is everything a Clipper needs for one brush.
type ClipInput struct {
	Brush *intersect.WorldBrush
	// Routed holds the world brushes of Table.Nodes, position for position.
	Routed []*intersect.WorldBrush
	Table  *routing.RoutingTable
}

// Fragment is a convex piece of one brush polygon with its final category.
// Points are wound counter-clockwise seen from the side the surface faces:
// ReverseAligned fragments are already flipped.
type Fragment struct {
	Polygon  int
	Points   []v3.Vec
	Plane    graph.Plane
	Category routing.Category
}

// ClipResult holds the surviving fragments of one brush.
type ClipResult struct {
	Fragments []Fragment
	// Unresolved counts fragments dropped because their route could not be
	// resolved.
	Unresolved int
}

// Clipper splits a brush's polygons against the brushes of its routing table
// and keeps the fragments whose final category is Aligned or
// ReverseAligned.
type Clipper interface {
	Clip(in ClipInput) (*ClipResult, error)
}

// NewClipInput resolves the world brushes of table from res.
func NewClipInput(res *intersect.Result, table *routing.RoutingTable) ClipInput {
	in := ClipInput{
		Brush:  &res.World[table.Brush],
		Routed: make([]*intersect.WorldBrush, len(table.Nodes)),
		Table:  table,
	}
	for k, n := range table.Nodes {
		in.Routed[k] = &res.World[n.Brush]
	}
	return in
}
