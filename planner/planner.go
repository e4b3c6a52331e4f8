// Package planner computes where each drone should fly, and at what yaw, to
// best frame a set of ground-object trajectories.
//
// The pipeline flattens every trajectory point into a local planar frame
// around the test origin, bounds the cloud with a minimum-area rectangle,
// covers the rectangle with one camera-footprint square per drone spaced
// along the long axis, and converts the square centers back to geodetic
// fly-to targets at the altitude the camera needs to see a full square.
package planner

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/skyrelay/groundcore/geodesy"
	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/spatial"
	"github.com/skyrelay/groundcore/utils"
)

// MaxOverlap is the largest usable overlap fraction between adjacent
// coverage squares.
const MaxOverlap = 0.9

// Planning errors surfaced to the supervisor, which refuses to start on any
// of them.
var (
	ErrNoTrajectories  = errors.New("trajectory set is empty")
	ErrDroneProximity  = errors.Errorf("overlap above %v leaves no room to separate multiple drones", MaxOverlap)
	ErrBadDroneCount   = errors.New("drone count must be at least 1")
	ErrDegenerateCloud = errors.New("trajectories never leave a single point")
)

// FlyToTarget is a geodetic position plus the yaw, in degrees clockwise from
// north, a drone should adopt there.
type FlyToTarget struct {
	Coordinate geodesy.Coordinate
	YawDeg     float64
}

// Request carries one planning invocation.
type Request struct {
	Trajectories geodesy.TrajectorySet
	Origin       geodesy.Coordinate
	DroneCount   int
	// Overlap is the fraction of footprint shared by adjacent drones.
	Overlap float64

	// camera and regulatory parameters; zero values take the defaults below
	FOVDegrees   float64
	AltitudeMinM float64
	AltitudeMaxM float64
}

// Camera and regulatory defaults.
const (
	DefaultFOVDegrees   = 82.6
	DefaultAltitudeMinM = 30
	DefaultAltitudeMaxM = 99
)

func (req *Request) fillDefaults() {
	if req.FOVDegrees == 0 {
		req.FOVDegrees = DefaultFOVDegrees
	}
	if req.AltitudeMinM == 0 {
		req.AltitudeMinM = DefaultAltitudeMinM
	}
	if req.AltitudeMaxM == 0 {
		req.AltitudeMaxM = DefaultAltitudeMaxM
	}
}

// Assignment is the planner output: one target per drone slot and the shared
// yaw. The side and altitude describe the camera footprint that produced it.
type Assignment struct {
	Targets     []FlyToTarget
	YawDeg      float64
	AltitudeM   float64
	SquareSideM float64
}

// Plan computes the fly-to assignment for req. It is a one-shot call: the
// result is fixed for the lifetime of a signalling server.
func Plan(req Request, logger logging.Logger) (Assignment, error) {
	req.fillDefaults()

	if req.DroneCount < 1 {
		return Assignment{}, ErrBadDroneCount
	}
	if req.DroneCount >= 2 && req.Overlap > MaxOverlap {
		return Assignment{}, ErrDroneProximity
	}
	if req.Trajectories.PointCount() == 0 {
		return Assignment{}, ErrNoTrajectories
	}

	pts := make([]r2.Point, 0, req.Trajectories.PointCount())
	for _, traj := range req.Trajectories {
		for _, c := range traj {
			pts = append(pts, geodesy.GeodeticToLocal(req.Origin, c))
		}
	}

	rect, err := spatial.MinAreaRectangle(pts)
	if err != nil {
		if errors.Is(err, spatial.ErrIdenticalPoints) {
			return Assignment{}, ErrDegenerateCloud
		}
		return Assignment{}, err
	}

	side := spatial.CoverSide(rect, req.DroneCount, req.Overlap)
	alt := altitudeForSide(side, req.FOVDegrees)
	if clamped := utils.Clamp(alt, req.AltitudeMinM, req.AltitudeMaxM); clamped != alt {
		side = sideForAltitude(clamped, req.FOVDegrees)
		alt = clamped
	}

	longAxis := rect.LongAxis()
	yaw := utils.ModAngDeg(utils.RadToDeg(math.Atan2(longAxis.Y, longAxis.X)) + 90)

	centers := spatial.CoverCenters(rect, req.DroneCount, req.Overlap, side)
	targets := make([]FlyToTarget, 0, len(centers))
	for _, center := range centers {
		targets = append(targets, FlyToTarget{
			Coordinate: geodesy.LocalToGeodetic(req.Origin, center.X, center.Y, alt),
			YawDeg:     yaw,
		})
	}

	logger.Debugw("planned drone cover",
		"drones", req.DroneCount,
		"points", len(pts),
		"square_side_m", side,
		"altitude_m", alt,
		"yaw_deg", yaw,
	)
	return Assignment{
		Targets:     targets,
		YawDeg:      yaw,
		AltitudeM:   alt,
		SquareSideM: side,
	}, nil
}
