package planner

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/skyrelay/groundcore/geodesy"
	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/utils"
)

func TestPlanSingleDrone(t *testing.T) {
	logger := logging.NewTestLogger(t)
	origin := geodesy.NewCoordinate(57.7, 11.9, 0)
	req := Request{
		Trajectories: geodesy.TrajectorySet{
			"v1": {
				geodesy.NewCoordinate(57.7, 11.9, 0),
				geodesy.NewCoordinate(57.701, 11.901, 0),
				geodesy.NewCoordinate(57.7005, 11.9015, 0),
			},
		},
		Origin:     origin,
		DroneCount: 1,
		Overlap:    0.5,
	}

	got, err := Plan(req, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Targets, test.ShouldHaveLength, 1)

	target := got.Targets[0]
	test.That(t, target.Coordinate.Lat(), test.ShouldAlmostEqual, origin.Lat(), 0.001)
	test.That(t, target.Coordinate.Lng(), test.ShouldAlmostEqual, origin.Lng(), 0.001)
	test.That(t, got.AltitudeM, test.ShouldBeGreaterThanOrEqualTo, 30)
	test.That(t, got.AltitudeM, test.ShouldBeLessThanOrEqualTo, 99)
	test.That(t, got.YawDeg, test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, got.YawDeg, test.ShouldBeLessThan, 360)

	// the ~126 m cloud needs a 69.3 m square seen from 66 m up
	test.That(t, got.AltitudeM, test.ShouldEqual, 66)
	test.That(t, target.Coordinate.Alt(), test.ShouldEqual, 66)
}

func TestPlanTwoDroneSymmetry(t *testing.T) {
	logger := logging.NewTestLogger(t)
	origin := geodesy.NewCoordinate(57.7, 11.9, 0)

	// square-symmetric cloud, 40 m x 40 m around the origin
	corners := make([]geodesy.Coordinate, 0, 4)
	for _, d := range [][2]float64{{-20, -20}, {20, -20}, {20, 20}, {-20, 20}} {
		corners = append(corners, geodesy.LocalToGeodetic(origin, d[0], d[1], 0))
	}
	req := Request{
		Trajectories: geodesy.TrajectorySet{"cloud": corners},
		Origin:       origin,
		DroneCount:   2,
		Overlap:      0.5,
	}

	got, err := Plan(req, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Targets, test.ShouldHaveLength, 2)

	a, b := got.Targets[0], got.Targets[1]
	test.That(t, a.Coordinate.Alt(), test.ShouldEqual, b.Coordinate.Alt())

	// symmetric about the origin along the long axis
	test.That(t, (a.Coordinate.Lat()+b.Coordinate.Lat())/2, test.ShouldAlmostEqual, origin.Lat(), 1e-9)
	test.That(t, (a.Coordinate.Lng()+b.Coordinate.Lng())/2, test.ShouldAlmostEqual, origin.Lng(), 1e-9)

	// a tight square cloud is seen comfortably from the regulatory floor
	test.That(t, got.AltitudeM, test.ShouldEqual, 30)

	// equal extents tie toward the second axis (north): atan2(1,0)+90 = 180
	test.That(t, got.YawDeg, test.ShouldEqual, 180)
}

func TestPlanAltitudeClamp(t *testing.T) {
	logger := logging.NewTestLogger(t)
	origin := geodesy.NewCoordinate(57.7, 11.9, 0)

	req := Request{
		Trajectories: geodesy.TrajectorySet{
			"far": {
				geodesy.LocalToGeodetic(origin, -2000, 0, 0),
				geodesy.LocalToGeodetic(origin, 2000, 0, 0),
				geodesy.LocalToGeodetic(origin, 0, 300, 0),
			},
		},
		Origin:     origin,
		DroneCount: 1,
		Overlap:    0.5,
	}

	got, err := Plan(req, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.AltitudeM, test.ShouldEqual, 99)

	// the side is re-derived from the clamped altitude
	wantSide := 1.2 * 99 * math.Tan(utils.DegToRad(82.6/2))
	test.That(t, got.SquareSideM, test.ShouldAlmostEqual, wantSide, 1e-9)
}

func TestPlanErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	origin := geodesy.NewCoordinate(57.7, 11.9, 0)
	point := geodesy.NewCoordinate(57.7001, 11.9001, 0)

	for _, tc := range []struct {
		name string
		req  Request
		err  error
	}{
		{
			"zero drones",
			Request{Trajectories: geodesy.TrajectorySet{"v": {point}}, Origin: origin},
			ErrBadDroneCount,
		},
		{
			"proximity",
			Request{
				Trajectories: geodesy.TrajectorySet{"v": {point}},
				Origin:       origin,
				DroneCount:   2,
				Overlap:      0.95,
			},
			ErrDroneProximity,
		},
		{
			"no trajectories",
			Request{Trajectories: geodesy.TrajectorySet{}, Origin: origin, DroneCount: 1},
			ErrNoTrajectories,
		},
		{
			"degenerate cloud",
			Request{
				Trajectories: geodesy.TrajectorySet{"v": {point, point, point}},
				Origin:       origin,
				DroneCount:   1,
			},
			ErrDegenerateCloud,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.req, logger)
			test.That(t, err, test.ShouldBeError, tc.err)
		})
	}
}

func TestAltitudeForSide(t *testing.T) {
	// the 82.6 degree lens covers a 104.36 m square from the 99 m ceiling
	side := sideForAltitude(99, 82.6)
	test.That(t, side, test.ShouldAlmostEqual, 104.36, 0.01)
	test.That(t, altitudeForSide(side, 82.6), test.ShouldEqual, 99)
}
