// Package centerline estimates the medial axis of a tubular segmentation as
// a smooth curve (x(z), y(z)) parameterized by slice index, and exposes the
// per-slice tangent vectors the angle corrector needs. Two smoothing
// algorithms are available: polynomial least squares and a natural cubic
// spline over subsampled control points.
package centerline

import (
	"fmt"
	"sort"

	"cordmorph/internal/models"
)

// Params controls centerline smoothing.
type Params struct {
	// Algorithm is "polyfit" (default) or "spline"
	Algorithm string

	// Degree is the polynomial degree for polyfit
	Degree int

	// ControlSpacing is the slice spacing between spline control points
	ControlSpacing int
}

// DefaultParams returns the standard smoothing parameters.
func DefaultParams() Params {
	return Params{
		Algorithm:      "polyfit",
		Degree:         5,
		ControlSpacing: 5,
	}
}

// Tangent is the in-plane component of the centerline derivative at one
// slice, expressed in voxel grid units per slice.
type Tangent struct {
	DX, DY float64
}

// Curve is the fitted centerline sampled on the integer slice grid.
type Curve struct {
	// Slices holds the slice indices the curve covers, ascending
	Slices []int

	// X and Y are the smoothed center positions per covered slice,
	// in voxel coordinates of the resampled grid
	X, Y []float64

	// Tangents maps each covered slice index to the local derivative
	Tangents map[int]Tangent

	// Fit carries the smoothing diagnostics, passed through verbatim to
	// the caller of the shape driver
	Fit *FitResults
}

// MissingSlices returns the slice indices in [minZ, maxZ] that the curve
// does not cover, sorted ascending.
func (c *Curve) MissingSlices(minZ, maxZ int) []int {
	var missing []int
	for z := minZ; z <= maxZ; z++ {
		if _, ok := c.Tangents[z]; !ok {
			missing = append(missing, z)
		}
	}
	sort.Ints(missing)
	return missing
}

// Extract computes the centerline of a segmentation volume. For every
// occupied slice the intensity-weighted center of mass is taken, the
// resulting point cloud is smoothed with the configured algorithm, and the
// smoothed curve plus its derivative are sampled at every slice of the
// volume's occupied range.
func Extract(vol *models.Volume, params Params) (*Curve, error) {
	minZ, maxZ, ok := vol.OccupiedRange(models.NearZeroThreshold)
	if !ok {
		return nil, fmt.Errorf("cannot extract centerline: volume is empty")
	}

	// Collect weighted centers of mass for slices that carry mass.
	var zs, xs, ys []float64
	for z := minZ; z <= maxZ; z++ {
		patch, err := vol.Patch(z)
		if err != nil {
			return nil, err
		}

		var mass, mx, my float64
		for y := 0; y < patch.Ny; y++ {
			for x := 0; x < patch.Nx; x++ {
				v := patch.At(x, y)
				if v <= models.NearZeroThreshold {
					continue
				}
				mass += v
				mx += v * float64(x)
				my += v * float64(y)
			}
		}
		if mass == 0 {
			continue
		}

		zs = append(zs, float64(z))
		xs = append(xs, mx/mass)
		ys = append(ys, my/mass)
	}

	if len(zs) == 0 {
		return nil, fmt.Errorf("cannot extract centerline: no occupied slices")
	}

	var fitX, fitY fittedAxis
	var err error
	switch params.Algorithm {
	case "", "polyfit":
		fitX, err = polyfit(zs, xs, params.Degree)
		if err != nil {
			return nil, fmt.Errorf("centerline x fit failed: %w", err)
		}
		fitY, err = polyfit(zs, ys, params.Degree)
		if err != nil {
			return nil, fmt.Errorf("centerline y fit failed: %w", err)
		}
	case "spline":
		fitX = splinefit(zs, xs, params.ControlSpacing)
		fitY = splinefit(zs, ys, params.ControlSpacing)
	default:
		return nil, fmt.Errorf("unknown centerline algorithm %q", params.Algorithm)
	}

	curve := &Curve{
		Tangents: make(map[int]Tangent, maxZ-minZ+1),
		Fit:      newFitResults(params, fitX, fitY, zs, xs, ys),
	}

	for z := minZ; z <= maxZ; z++ {
		fz := float64(z)
		curve.Slices = append(curve.Slices, z)
		curve.X = append(curve.X, fitX.at(fz))
		curve.Y = append(curve.Y, fitY.at(fz))
		curve.Tangents[z] = Tangent{
			DX: fitX.deriv(fz),
			DY: fitY.deriv(fz),
		}
	}

	return curve, nil
}
