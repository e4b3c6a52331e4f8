// Package spatial provides the planar geometry used for drone coverage
// planning: convex hulls, oriented minimum-area bounding rectangles, and
// square covers of a rectangle.
package spatial

import (
	"sort"

	"github.com/golang/geo/r2"
)

// cross returns the z component of (a-o) x (b-o). Positive when o->a->b
// turns counterclockwise.
func cross(o, a, b r2.Point) float64 {
	return a.Sub(o).Cross(b.Sub(o))
}

// ConvexHull returns the convex hull of pts in counterclockwise order using
// the monotone chain construction. Collinear points along hull edges are
// dropped. Degenerate inputs return what remains after deduplication: a
// single point or the two endpoints of a segment.
func ConvexHull(pts []r2.Point) []r2.Point {
	if len(pts) == 0 {
		return nil
	}

	sorted := make([]r2.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	deduped := sorted[:1]
	for _, p := range sorted[1:] {
		if last := deduped[len(deduped)-1]; p.X != last.X || p.Y != last.Y {
			deduped = append(deduped, p)
		}
	}
	if len(deduped) < 3 {
		return deduped
	}

	var lower []r2.Point
	for _, p := range deduped {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []r2.Point
	for i := len(deduped) - 1; i >= 0; i-- {
		p := deduped[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		// every point was collinear
		return []r2.Point{deduped[0], deduped[len(deduped)-1]}
	}
	return hull
}
