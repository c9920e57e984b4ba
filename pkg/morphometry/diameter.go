package morphometry

// ResolveDiameters assigns the ellipse major/minor axis lengths to the
// anatomical AP and RL diameters based on the folded orientation, and
// scales them to physical units. Below 45 degrees the major axis runs
// right-left; at or above 45 degrees (including the tie at exactly 45) it
// runs antero-posterior.
func ResolveDiameters(majorAxis, minorAxis, orientationDeg, px, py float64) (diameterAP, diameterRL float64) {
	if orientationDeg >= 0 && orientationDeg < 45 {
		diameterAP = minorAxis
		diameterRL = majorAxis
	} else {
		diameterAP = majorAxis
		diameterRL = minorAxis
	}

	diameterAP *= px
	diameterRL *= py
	return diameterAP, diameterRL
}
