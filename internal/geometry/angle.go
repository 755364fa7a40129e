// Package geometry measures joint angles from 2D landmark positions.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrDegenerate is returned when an arm segment has zero length and the
	// angle at the joint is undefined.
	ErrDegenerate = errors.New("degenerate joint: segment has zero length")
	ErrNonFinite  = errors.New("joint coordinates are not finite")
)

// JointAngle returns the interior angle at b formed by the segments b→a and
// b→c, in whole degrees within [0,180]. The result does not depend on the
// rotation direction, so JointAngle(a, b, c) == JointAngle(c, b, a).
func JointAngle(a, b, c r2.Vec) (int, error) {
	for _, p := range [...]r2.Vec{a, b, c} {
		if !finite(p) {
			return 0, ErrNonFinite
		}
	}

	ba := r2.Sub(a, b)
	bc := r2.Sub(c, b)
	if r2.Norm(ba) == 0 || r2.Norm(bc) == 0 {
		return 0, ErrDegenerate
	}

	radians := math.Atan2(bc.Y, bc.X) - math.Atan2(ba.Y, ba.X)
	degrees := math.Abs(radians * 180 / math.Pi)
	if degrees > 180 {
		degrees = 360 - degrees
	}
	return int(math.Round(degrees)), nil
}

func finite(p r2.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
