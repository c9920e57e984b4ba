package morphometry

import "math"

// FoldOrientation maps a raw ellipse-fit orientation angle in radians onto
// an unsigned angle in [0, 90] degrees. The moment-based fit reports the
// major-axis angle modulo pi with a sign ambiguity, so the value is folded
// by successive reflection before it is anatomically meaningful.
func FoldOrientation(radians float64) float64 {
	deg := radians * 180.0 / math.Pi
	if abs := math.Abs(deg); abs >= 360 && abs <= 540 {
		deg = 540 - abs
	}
	if abs := math.Abs(deg); abs >= 180 && abs <= 360 {
		deg = 360 - abs
	}
	if abs := math.Abs(deg); abs >= 90 && abs <= 180 {
		deg = 180 - abs
	}
	return math.Abs(deg)
}
