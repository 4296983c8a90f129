// Package planar implements kernel.Clipper by splitting convex polygons
// against the face planes of convex brushes.
package planar

import (
	"fmt"
	"math"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/chazu/brushcsg/pkg/routing"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Clipper = (*Clipper)(nil)

// minArea drops slivers produced by nearly tangent splits.
const minArea = 1e-9

// Clipper splits every polygon of a brush into convex pieces that lie wholly
// inside, outside or on a face of each routed brush, then routes each piece.
type Clipper struct {
	Epsilon float64
}

// New returns a clipper using eps as the plane tolerance.
func New(eps float64) *Clipper {
	if eps <= 0 {
		eps = graph.PlaneEpsilon
	}
	return &Clipper{Epsilon: eps}
}

type piece struct {
	pts  []v3.Vec
	cats []routing.Category
}

// Clip implements kernel.Clipper.
func (c *Clipper) Clip(in kernel.ClipInput) (*kernel.ClipResult, error) {
	if in.Brush == nil || in.Table == nil {
		return nil, fmt.Errorf("planar: clip: missing brush or table")
	}
	if len(in.Routed) != len(in.Table.Nodes) {
		return nil, fmt.Errorf("planar: clip: %d routed brushes for %d table nodes",
			len(in.Routed), len(in.Table.Nodes))
	}

	res := &kernel.ClipResult{}
	for p := range in.Brush.Mesh.Polygons {
		plane := in.Brush.Planes[p]
		pieces := []piece{{pts: in.Brush.PolygonPoints(p), cats: make([]routing.Category, len(in.Routed))}}

		for k, other := range in.Routed {
			if other.Brush == in.Brush.Brush {
				for i := range pieces {
					pieces[i].cats[k] = routing.Aligned
				}
				continue
			}
			var next []piece
			for _, pc := range pieces {
				for _, part := range c.classify(pc.pts, plane, other) {
					cats := append([]routing.Category(nil), pc.cats...)
					cats[k] = part.cat
					next = append(next, piece{pts: part.pts, cats: cats})
				}
			}
			pieces = next
		}

		for _, pc := range pieces {
			final, ok := in.Table.Route(pc.cats)
			if !ok {
				res.Unresolved++
				continue
			}
			switch final {
			case routing.Aligned:
				res.Fragments = append(res.Fragments, kernel.Fragment{
					Polygon: p, Points: pc.pts, Plane: plane, Category: final,
				})
			case routing.ReverseAligned:
				res.Fragments = append(res.Fragments, kernel.Fragment{
					Polygon: p, Points: reversed(pc.pts), Plane: plane.Flip(), Category: final,
				})
			}
		}
	}
	return res, nil
}

type part struct {
	pts []v3.Vec
	cat routing.Category
}

// classify splits pts, lying on plane, against the convex brush other.
func (c *Clipper) classify(pts []v3.Vec, plane graph.Plane, other *intersect.WorldBrush) []part {
	eps := c.Epsilon
	for qi, q := range other.Planes {
		d := plane.Normal.Dot(q.Normal)
		switch {
		case d > 1-eps && math.Abs(plane.D-q.D) <= eps:
			return c.coplanar(pts, other, qi, routing.Aligned)
		case d < -1+eps && math.Abs(plane.D+q.D) <= eps:
			return c.coplanar(pts, other, qi, routing.ReverseAligned)
		}
	}

	var out []part
	remaining := pts
	for _, q := range other.Planes {
		front, back := split(remaining, q, eps)
		if front != nil && area(front) > minArea {
			out = append(out, part{pts: front, cat: routing.Outside})
		}
		remaining = back
		if remaining == nil {
			return out
		}
	}
	if area(remaining) > minArea {
		out = append(out, part{pts: remaining, cat: routing.Inside})
	}
	return out
}

// coplanar splits a polygon lying in the plane of face skip of other: the
// part within the face is cat, the rest Outside.
func (c *Clipper) coplanar(pts []v3.Vec, other *intersect.WorldBrush, skip int, cat routing.Category) []part {
	var out []part
	remaining := pts
	for qi, q := range other.Planes {
		if qi == skip {
			continue
		}
		front, back := split(remaining, q, c.Epsilon)
		if front != nil && area(front) > minArea {
			out = append(out, part{pts: front, cat: routing.Outside})
		}
		remaining = back
		if remaining == nil {
			return out
		}
	}
	if area(remaining) > minArea {
		out = append(out, part{pts: remaining, cat: cat})
	}
	return out
}

// split cuts a convex polygon by q. front is the part with positive
// distance, back the rest; either is nil when empty. Points within eps of
// the plane belong to both sides.
func split(pts []v3.Vec, q graph.Plane, eps float64) (front, back []v3.Vec) {
	dist := make([]float64, len(pts))
	var hasFront, hasBack bool
	for i, p := range pts {
		dist[i] = q.Distance(p)
		hasFront = hasFront || dist[i] > eps
		hasBack = hasBack || dist[i] < -eps
	}
	switch {
	case !hasFront:
		return nil, pts
	case !hasBack:
		return pts, nil
	}
	for i, cur := range pts {
		j := (i + 1) % len(pts)
		dc, dn := dist[i], dist[j]
		switch {
		case dc > eps:
			front = append(front, cur)
		case dc < -eps:
			back = append(back, cur)
		default:
			front = append(front, cur)
			back = append(back, cur)
		}
		if (dc > eps && dn < -eps) || (dc < -eps && dn > eps) {
			t := dc / (dc - dn)
			p := cur.Add(pts[j].Sub(cur).MulScalar(t))
			front = append(front, p)
			back = append(back, p)
		}
	}
	return front, back
}

func area(pts []v3.Vec) float64 {
	var n v3.Vec
	for i := 1; i+1 < len(pts); i++ {
		n = n.Add(pts[i].Sub(pts[0]).Cross(pts[i+1].Sub(pts[0])))
	}
	return n.Length() / 2
}

func reversed(pts []v3.Vec) []v3.Vec {
	out := make([]v3.Vec, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
