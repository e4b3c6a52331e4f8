package spatial

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestCoverSideSingle(t *testing.T) {
	rect := Rectangle{
		Axis:   [2]r2.Point{{X: 1, Y: 0}, {X: 0, Y: 1}},
		Extent: [2]float64{50, 20},
	}
	test.That(t, CoverSide(rect, 1, 0.5), test.ShouldAlmostEqual, 55, 1e-9)
}

func TestCoverSideSquareFloor(t *testing.T) {
	// a square cloud: the shrink loop undershoots the shorter-extent floor,
	// so the floor wins
	rect := Rectangle{
		Axis:   [2]r2.Point{{X: 1, Y: 0}, {X: 0, Y: 1}},
		Extent: [2]float64{20, 20},
	}
	test.That(t, CoverSide(rect, 2, 0.5), test.ShouldAlmostEqual, 22, 1e-9)
}

func TestCoverSideElongated(t *testing.T) {
	rect := Rectangle{
		Axis:   [2]r2.Point{{X: 1, Y: 0}, {X: 0, Y: 1}},
		Extent: [2]float64{100, 10},
	}
	side := CoverSide(rect, 2, 0)
	// shrinks until 6*side <= 220
	test.That(t, side, test.ShouldBeLessThanOrEqualTo, 220.0/6)
	test.That(t, side, test.ShouldBeGreaterThan, 220.0/6*0.98)
}

func TestCoverCenters(t *testing.T) {
	rect := Rectangle{
		Center: r2.Point{X: 3, Y: 4},
		Axis:   [2]r2.Point{{X: 1, Y: 0}, {X: 0, Y: 1}},
		Extent: [2]float64{100, 10},
	}

	one := CoverCenters(rect, 1, 0.5, 110)
	test.That(t, one, test.ShouldHaveLength, 1)
	test.That(t, one[0], test.ShouldResemble, rect.Center)

	two := CoverCenters(rect, 2, 0.5, 40)
	test.That(t, two, test.ShouldHaveLength, 2)
	// symmetric about the rectangle center along the long axis
	mid := two[0].Add(two[1]).Mul(0.5)
	test.That(t, mid.X, test.ShouldAlmostEqual, rect.Center.X, 1e-9)
	test.That(t, mid.Y, test.ShouldAlmostEqual, rect.Center.Y, 1e-9)
	test.That(t, two[1].Sub(two[0]).Norm(), test.ShouldAlmostEqual, 40, 1e-9)

	three := CoverCenters(rect, 3, 0.5, 40)
	test.That(t, three, test.ShouldHaveLength, 3)
	test.That(t, three[1], test.ShouldResemble, rect.Center)
}
