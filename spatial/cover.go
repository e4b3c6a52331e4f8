package spatial

import (
	"github.com/golang/geo/r2"
)

const (
	coverMargin     = 1.1
	coverShrink     = 0.98
	coverShrinkIter = 99
)

// CoverSide returns the side length of the n identical squares that cover
// rect when spaced along its long axis with the given overlap fraction.
// A single square simply spans the longer extent with margin. For n > 1 the
// side starts at the longer extent and shrinks geometrically until the
// overlapped square train fits the margined span, floored so each square
// still spans the shorter extent.
func CoverSide(rect Rectangle, n int, overlap float64) float64 {
	longer := rect.LongerExtent()
	if n == 1 {
		return coverMargin * longer
	}

	side := longer
	span := 2 * longer * coverMargin
	for i := 0; i < coverShrinkIter; i++ {
		width := float64(n)*side*(1-overlap)*2 + side*(1-overlap)*2
		if width <= span {
			break
		}
		side *= coverShrink
	}
	if floor := rect.ShorterExtent() * coverMargin; side < floor {
		side = floor
	}
	return side
}

// CoverCenters returns the n square centers spaced along the rectangle's
// long axis: center + (i - (n-1)/2) * side * (1-overlap) * 2 * longAxis.
func CoverCenters(rect Rectangle, n int, overlap, side float64) []r2.Point {
	axis := rect.LongAxis()
	step := side * (1 - overlap) * 2

	centers := make([]r2.Point, 0, n)
	for i := 0; i < n; i++ {
		offset := (float64(i) - float64(n-1)/2) * step
		centers = append(centers, rect.Center.Add(axis.Mul(offset)))
	}
	return centers
}
