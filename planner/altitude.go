package planner

import (
	"math"

	"github.com/skyrelay/groundcore/utils"
)

// altitudeForSide returns the flight altitude in whole meters at which the
// camera footprint spans a square of the given side. The lens sees a 16:9
// frame out of a 4:3 sensor, so the circumscribing radius of the frame is
// 5/6 of the square side; the altitude follows from the half field of view.
func altitudeForSide(side, fovDegrees float64) float64 {
	theta := utils.DegToRad(fovDegrees / 2)
	x := math.Sqrt(side * side / (16 * 9))
	y := (16 * x) / 4
	radius := math.Hypot(2*y, 1.5*y)
	return math.Round(radius / math.Tan(theta))
}

// sideForAltitude inverts altitudeForSide: the square side the camera covers
// from the given altitude.
func sideForAltitude(altitude, fovDegrees float64) float64 {
	theta := utils.DegToRad(fovDegrees / 2)
	return 1.2 * altitude * math.Tan(theta)
}
