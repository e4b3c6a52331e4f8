package spatial

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestConvexHullSquare(t *testing.T) {
	pts := []r2.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 1, Y: 1},
		{X: 0, Y: 1},
		{X: 0.5, Y: 0.5},
		{X: 0.25, Y: 0.75},
	}
	hull := ConvexHull(pts)
	test.That(t, hull, test.ShouldHaveLength, 4)

	// counterclockwise: consecutive cross products all positive
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		c := hull[(i+2)%len(hull)]
		test.That(t, cross(a, b, c), test.ShouldBeGreaterThan, 0)
	}
}

func TestConvexHullCollinear(t *testing.T) {
	pts := []r2.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 1},
		{X: 2, Y: 2},
		{X: 3, Y: 3},
	}
	hull := ConvexHull(pts)
	test.That(t, hull, test.ShouldHaveLength, 2)
	test.That(t, hull[0], test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, hull[1], test.ShouldResemble, r2.Point{X: 3, Y: 3})
}

func TestConvexHullDegenerate(t *testing.T) {
	test.That(t, ConvexHull(nil), test.ShouldBeNil)

	single := ConvexHull([]r2.Point{{X: 4, Y: 2}})
	test.That(t, single, test.ShouldHaveLength, 1)

	dupes := ConvexHull([]r2.Point{{X: 4, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 2}})
	test.That(t, dupes, test.ShouldHaveLength, 1)
}
