package geodesy

import (
	"fmt"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestCoordinateAccessors(t *testing.T) {
	c := NewCoordinate(57.7, 11.9, 42)
	test.That(t, c.Lat(), test.ShouldEqual, 57.7)
	test.That(t, c.Lng(), test.ShouldEqual, 11.9)
	test.That(t, c.Alt(), test.ShouldEqual, 42)

	raised := c.WithAlt(99)
	test.That(t, raised.Alt(), test.ShouldEqual, 99)
	test.That(t, raised.Lat(), test.ShouldEqual, c.Lat())

	var zero Coordinate
	test.That(t, zero.Lat(), test.ShouldEqual, 0)
	test.That(t, zero.Lng(), test.ShouldEqual, 0)
}

func TestLocalToGeodetic(t *testing.T) {
	origin := NewCoordinate(57.7, 11.9, 0)

	// moving north only changes latitude
	north := LocalToGeodetic(origin, 0, 1000, 0)
	test.That(t, north.Lat(), test.ShouldBeGreaterThan, origin.Lat())
	test.That(t, north.Lng(), test.ShouldAlmostEqual, origin.Lng())

	// moving east only changes longitude
	east := LocalToGeodetic(origin, 1000, 0, 0)
	test.That(t, east.Lng(), test.ShouldBeGreaterThan, origin.Lng())
	test.That(t, east.Lat(), test.ShouldAlmostEqual, origin.Lat())

	// one degree of latitude is about 111.2 km on the R=6371 km sphere
	oneDegNorth := LocalToGeodetic(origin, 0, 111194.9, 0)
	test.That(t, oneDegNorth.Lat(), test.ShouldAlmostEqual, 58.7, 1e-4)
}

func TestRoundTrip(t *testing.T) {
	origin := NewCoordinate(57.7, 11.9, 0)
	for i, tc := range []struct {
		dx, dy float64
	}{
		{0, 0},
		{10, 10},
		{-250.5, 731.25},
		{9999, -9999},
		{-42.125, 0.001},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			c := LocalToGeodetic(origin, tc.dx, tc.dy, 0)
			back := GeodeticToLocal(origin, c)
			// identity within 1 mm for offsets under 10 km
			test.That(t, math.Abs(back.X-tc.dx), test.ShouldBeLessThan, 1e-3)
			test.That(t, math.Abs(back.Y-tc.dy), test.ShouldBeLessThan, 1e-3)
		})
	}
}

func TestGreatCircleAgreement(t *testing.T) {
	// the linearised displacement should agree with the great-circle
	// distance to within a meter over a couple of kilometers
	origin := NewCoordinate(57.7, 11.9, 0)
	c := LocalToGeodetic(origin, 1500, -800, 0)

	wantKm := math.Hypot(1500, 800) / 1000
	gotKm := origin.Point().GreatCircleDistance(c.Point())
	test.That(t, math.Abs(gotKm-wantKm)*1000, test.ShouldBeLessThan, 1.0)
}

func TestTrajectorySetPointCount(t *testing.T) {
	ts := TrajectorySet{
		"car":   {NewCoordinate(57.7, 11.9, 0), NewCoordinate(57.701, 11.901, 0)},
		"truck": {NewCoordinate(57.7005, 11.9015, 0)},
	}
	test.That(t, ts.PointCount(), test.ShouldEqual, 3)
	test.That(t, TrajectorySet{}.PointCount(), test.ShouldEqual, 0)
}
