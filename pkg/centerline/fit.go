package centerline

import (
	"fmt"
	"math"

	"github.com/cnkei/gospline"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FitResults holds smoothing diagnostics for one centerline fit. The shape
// driver returns it verbatim for downstream quality checks.
type FitResults struct {
	// Algorithm is the smoothing method that produced the curve
	Algorithm string

	// Degree is the polynomial degree (polyfit only)
	Degree int

	// N is the number of center-of-mass samples the fit consumed
	N int

	// RMSEX and RMSEY are the root-mean-square residuals of the fitted
	// curve against the raw centers of mass, in voxels
	RMSEX, RMSEY float64

	// R2X and R2Y are the coefficients of determination per axis
	R2X, R2Y float64
}

// fittedAxis is one smoothed coordinate function of the slice index.
type fittedAxis interface {
	at(z float64) float64
	deriv(z float64) float64
}

// polyAxis evaluates a least-squares polynomial on a normalized slice
// coordinate. Normalizing z to [0,1] keeps the Vandermonde system well
// conditioned at higher degrees.
type polyAxis struct {
	coeffs []float64
	z0     float64
	scale  float64
}

func (p polyAxis) at(z float64) float64 {
	t := (z - p.z0) / p.scale
	value := 0.0
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		value = value*t + p.coeffs[i]
	}
	return value
}

func (p polyAxis) deriv(z float64) float64 {
	t := (z - p.z0) / p.scale
	value := 0.0
	for i := len(p.coeffs) - 1; i >= 1; i-- {
		value = value*t + float64(i)*p.coeffs[i]
	}
	// Chain rule for the normalization
	return value / p.scale
}

// polyfit fits a polynomial of the requested degree to (zs, vals) by QR
// least squares. The degree is clamped so the system stays overdetermined.
func polyfit(zs, vals []float64, degree int) (fittedAxis, error) {
	n := len(zs)
	if n == 0 {
		return nil, fmt.Errorf("no samples to fit")
	}
	if degree < 1 {
		degree = 1
	}
	if degree > n-1 {
		degree = n - 1
	}
	if degree < 1 {
		// Single sample: constant curve with zero derivative.
		return polyAxis{coeffs: []float64{vals[0]}, z0: zs[0], scale: 1}, nil
	}

	z0 := zs[0]
	scale := zs[n-1] - zs[0]
	if scale == 0 {
		scale = 1
	}

	a := mat.NewDense(n, degree+1, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		t := (zs[i] - z0) / scale
		pow := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, pow)
			pow *= t
		}
		b.SetVec(i, vals[i])
	}

	var qr mat.QR
	qr.Factorize(a)

	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("least squares solve failed: %w", err)
		}
	}

	coeffs := make([]float64, degree+1)
	for j := 0; j <= degree; j++ {
		coeffs[j] = c.AtVec(j)
	}

	return polyAxis{coeffs: coeffs, z0: z0, scale: scale}, nil
}

// splineAxis wraps a natural cubic spline; the derivative is taken by a
// half-slice central difference.
type splineAxis struct {
	s gospline.Spline
}

func (s splineAxis) at(z float64) float64 {
	return s.s.At(z)
}

func (s splineAxis) deriv(z float64) float64 {
	const h = 0.5
	return (s.s.At(z+h) - s.s.At(z-h)) / (2 * h)
}

// splinefit builds a cubic spline through control points subsampled every
// `spacing` slices. The first and last samples are always kept so the curve
// spans the full occupied range.
func splinefit(zs, vals []float64, spacing int) fittedAxis {
	if spacing < 1 {
		spacing = 1
	}

	var cz, cv []float64
	for i := 0; i < len(zs); i += spacing {
		cz = append(cz, zs[i])
		cv = append(cv, vals[i])
	}
	if last := len(zs) - 1; len(cz) > 0 && cz[len(cz)-1] != zs[last] {
		cz = append(cz, zs[last])
		cv = append(cv, vals[last])
	}

	if len(cz) == 1 {
		// Degenerate single control point: constant curve.
		return polyAxis{coeffs: []float64{cv[0]}, z0: cz[0], scale: 1}
	}

	return splineAxis{s: gospline.NewCubicSpline(cz, cv)}
}

// newFitResults evaluates both fitted axes against the raw centers of mass.
func newFitResults(params Params, fitX, fitY fittedAxis, zs, xs, ys []float64) *FitResults {
	algo := params.Algorithm
	if algo == "" {
		algo = "polyfit"
	}

	rmseX, r2X := residualStats(fitX, zs, xs)
	rmseY, r2Y := residualStats(fitY, zs, ys)

	return &FitResults{
		Algorithm: algo,
		Degree:    params.Degree,
		N:         len(zs),
		RMSEX:     rmseX,
		RMSEY:     rmseY,
		R2X:       r2X,
		R2Y:       r2Y,
	}
}

func residualStats(fit fittedAxis, zs, vals []float64) (rmse, r2 float64) {
	n := len(vals)
	if n == 0 {
		return math.NaN(), math.NaN()
	}

	ssRes := 0.0
	for i := range zs {
		d := vals[i] - fit.at(zs[i])
		ssRes += d * d
	}
	rmse = math.Sqrt(ssRes / float64(n))

	// Guard against constant series, where R-squared is undefined; a zero
	// residual on a flat curve counts as a perfect fit.
	variance := stat.Variance(vals, nil)
	ssTot := variance * float64(n-1)
	if ssTot <= 1e-12 {
		if ssRes <= 1e-12 {
			return rmse, 1
		}
		return rmse, math.NaN()
	}

	return rmse, 1 - ssRes/ssTot
}
