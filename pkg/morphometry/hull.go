package morphometry

import "sort"

// point is a 2D coordinate in oversampled pixel units.
type point struct {
	x, y float64
}

// convexHull computes the convex hull of the given points with Andrew's
// monotone chain, returned in counter-clockwise order without the closing
// vertex. Fewer than three distinct points yield a degenerate hull.
func convexHull(points []point) []point {
	if len(points) < 3 {
		return points
	}

	pts := make([]point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})

	cross := func(o, a, b point) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	hull := make([]point, 0, 2*len(pts))

	// Lower hull
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper hull
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// polygonArea returns the area enclosed by the polygon via the shoelace
// formula. Vertex order does not matter; the result is non-negative.
func polygonArea(poly []point) float64 {
	if len(poly) < 3 {
		return 0
	}

	area := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		area += poly[i].x*poly[j].y - poly[j].x*poly[i].y
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}
