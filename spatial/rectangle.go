package spatial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Errors returned when no rectangle can bound the input.
var (
	ErrNoPoints        = errors.New("cannot bound an empty point set")
	ErrIdenticalPoints = errors.New("all points are identical")
)

// Rectangle is an oriented bounding rectangle: a center, two orthonormal
// axis directions, and the half-width extent along each axis.
type Rectangle struct {
	Center r2.Point
	Axis   [2]r2.Point
	Extent [2]float64
}

// Area returns the rectangle area.
func (r Rectangle) Area() float64 {
	return 4 * r.Extent[0] * r.Extent[1]
}

// LongAxis returns the axis direction along the longer extent. When the
// extents are equal the second axis wins.
func (r Rectangle) LongAxis() r2.Point {
	if r.Extent[0] > r.Extent[1] {
		return r.Axis[0]
	}
	return r.Axis[1]
}

// LongerExtent returns the larger half-width.
func (r Rectangle) LongerExtent() float64 {
	return math.Max(r.Extent[0], r.Extent[1])
}

// ShorterExtent returns the smaller half-width.
func (r Rectangle) ShorterExtent() float64 {
	return math.Min(r.Extent[0], r.Extent[1])
}

// Contains reports whether p lies within the rectangle expanded by tol on
// every side.
func (r Rectangle) Contains(p r2.Point, tol float64) bool {
	d := p.Sub(r.Center)
	return math.Abs(d.Dot(r.Axis[0])) <= r.Extent[0]+tol &&
		math.Abs(d.Dot(r.Axis[1])) <= r.Extent[1]+tol
}

// MinAreaRectangle returns the minimum-area rectangle enclosing the convex
// hull of pts, minimizing over hull-edge orientations (rotating calipers).
// The optimum over all rotations always aligns with a hull edge, so this is
// exact. Area ties keep the earlier hull edge. Collinear inputs produce a
// zero-height rectangle spanning the points, centered on their mean.
func MinAreaRectangle(pts []r2.Point) (Rectangle, error) {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return Rectangle{}, ErrNoPoints
	case 1:
		return Rectangle{}, ErrIdenticalPoints
	case 2:
		return segmentRectangle(pts, hull[0], hull[1]), nil
	}

	best := Rectangle{}
	bestArea := math.Inf(1)
	for i0 := 0; i0 < len(hull); i0++ {
		i1 := (i0 + 1) % len(hull)
		origin := hull[i0]
		u0 := hull[i1].Sub(origin).Normalize()
		u1 := u0.Ortho()

		var min0, max0, max1 float64
		for _, p := range hull {
			d := p.Sub(origin)
			dot0 := u0.Dot(d)
			min0 = math.Min(min0, dot0)
			max0 = math.Max(max0, dot0)
			// the hull is counterclockwise, so u1 projections are >= 0
			max1 = math.Max(max1, u1.Dot(d))
		}

		if area := (max0 - min0) * max1; area < bestArea {
			bestArea = area
			best = Rectangle{
				Center: origin.Add(u0.Mul((min0 + max0) / 2)).Add(u1.Mul(max1 / 2)),
				Axis:   [2]r2.Point{u0, u1},
				Extent: [2]float64{(max0 - min0) / 2, max1 / 2},
			}
		}
	}
	return best, nil
}

// segmentRectangle bounds a collinear point cloud: a zero-height rectangle
// along the segment direction, centered on the mean of the points and wide
// enough to span them all.
func segmentRectangle(pts []r2.Point, a, b r2.Point) Rectangle {
	dir := b.Sub(a).Normalize()

	var mean r2.Point
	for _, p := range pts {
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(pts)))

	var halfLen float64
	for _, p := range pts {
		halfLen = math.Max(halfLen, math.Abs(dir.Dot(p.Sub(mean))))
	}

	return Rectangle{
		Center: mean,
		Axis:   [2]r2.Point{dir, dir.Ortho()},
		Extent: [2]float64{halfLen, 0},
	}
}
