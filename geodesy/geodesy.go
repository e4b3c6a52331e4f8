// Package geodesy converts between geodetic coordinates and a local planar
// frame around a reference origin.
//
// The conversion is an equirectangular linearisation: east/north offsets in
// meters map to longitude/latitude offsets scaled by the spherical Earth
// radius and the cosine of the origin latitude. The approximation holds to
// well under a millimeter for the sub-10 km offsets a test site spans.
package geodesy

import (
	"math"

	"github.com/golang/geo/r2"
	geo "github.com/kellydunn/golang-geo"

	"github.com/skyrelay/groundcore/utils"
)

// EarthRadiusM is the spherical Earth radius used by the linearisation.
const EarthRadiusM = 6371000.0

// Coordinate is a geodetic position: latitude and longitude in decimal
// degrees and altitude in meters above the reference surface. Immutable
// once constructed.
type Coordinate struct {
	point *geo.Point
	alt   float64
}

// NewCoordinate returns a Coordinate at the given latitude, longitude, and
// altitude.
func NewCoordinate(lat, lng, alt float64) Coordinate {
	return Coordinate{point: geo.NewPoint(lat, lng), alt: alt}
}

// Lat returns latitude in decimal degrees.
func (c Coordinate) Lat() float64 {
	if c.point == nil {
		return 0
	}
	return c.point.Lat()
}

// Lng returns longitude in decimal degrees.
func (c Coordinate) Lng() float64 {
	if c.point == nil {
		return 0
	}
	return c.point.Lng()
}

// Alt returns altitude in meters.
func (c Coordinate) Alt() float64 {
	return c.alt
}

// Point returns the position as a geo point, without altitude.
func (c Coordinate) Point() *geo.Point {
	if c.point == nil {
		return geo.NewPoint(0, 0)
	}
	return c.point
}

// WithAlt returns a copy of c at the given altitude.
func (c Coordinate) WithAlt(alt float64) Coordinate {
	return NewCoordinate(c.Lat(), c.Lng(), alt)
}

// TrajectorySet maps an object identifier to the time-ordered path it takes
// through a test. Constructed once per test from orchestrator data.
type TrajectorySet map[string][]Coordinate

// PointCount returns the total number of coordinates across all objects.
func (ts TrajectorySet) PointCount() int {
	var n int
	for _, traj := range ts {
		n += len(traj)
	}
	return n
}

// LocalToGeodetic maps a local displacement around origin to a geodetic
// coordinate. dx is meters east, dy is meters north; the result carries the
// given altitude.
func LocalToGeodetic(origin Coordinate, dx, dy, alt float64) Coordinate {
	dLat := utils.RadToDeg(dy / EarthRadiusM)
	dLng := utils.RadToDeg(dx / (EarthRadiusM * math.Cos(utils.DegToRad(origin.Lat()))))
	return NewCoordinate(origin.Lat()+dLat, origin.Lng()+dLng, alt)
}

// GeodeticToLocal is the inverse of LocalToGeodetic: it maps a geodetic
// coordinate to an east/north displacement in meters around origin.
func GeodeticToLocal(origin, c Coordinate) r2.Point {
	dy := utils.DegToRad(c.Lat()-origin.Lat()) * EarthRadiusM
	dx := utils.DegToRad(c.Lng()-origin.Lng()) * EarthRadiusM * math.Cos(utils.DegToRad(origin.Lat()))
	return r2.Point{X: dx, Y: dy}
}
