package morphometry

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"cordmorph/internal/models"
	"cordmorph/pkg/centerline"
	"cordmorph/pkg/resample"
)

// MetricNames lists the per-slice output metrics in their canonical order.
var MetricNames = []string{
	"area",
	"angle_AP",
	"angle_RL",
	"diameter_AP",
	"diameter_RL",
	"eccentricity",
	"orientation",
	"solidity",
	"length",
}

// Metrics is the dense per-slice output table: one value per slice index in
// [0, Nz) for each metric, NaN where the slice could not be measured.
type Metrics struct {
	Nz     int
	Values map[string][]float64
}

// NewMetrics allocates a table with every entry set to NaN.
func NewMetrics(nz int) *Metrics {
	values := make(map[string][]float64, len(MetricNames))
	for _, name := range MetricNames {
		row := make([]float64, nz)
		for i := range row {
			row[i] = math.NaN()
		}
		values[name] = row
	}
	return &Metrics{Nz: nz, Values: values}
}

// Get returns the metric sequence for the given name.
func (m *Metrics) Get(name string) []float64 {
	return m.Values[name]
}

// MissingSlicesError is the fatal configuration error raised when angle
// correction is requested but the centerline does not cover every occupied
// slice of the input mask.
type MissingSlicesError struct {
	// Slices are the uncovered slice indices, ascending
	Slices []int
}

func (e *MissingSlicesError) Error() string {
	return fmt.Sprintf(
		"the angle correction centerline does not cover slice(s) %s of the input mask; "+
			"supply a more extensive centerline or disable angle correction",
		formatSliceList(e.Slices))
}

// formatSliceList renders slice indices compactly, collapsing runs into
// ranges ("2:4;7").
func formatSliceList(slices []int) string {
	if len(slices) == 0 {
		return ""
	}

	var parts []string
	start := slices[0]
	prev := slices[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%d", start, prev))
		}
	}
	for _, z := range slices[1:] {
		if z == prev+1 {
			prev = z
			continue
		}
		flush()
		start = z
		prev = z
	}
	flush()

	return strings.Join(parts, ";")
}

// Options configures a shape computation.
type Options struct {
	// AngleCorrection de-skews each slice using the centerline tangent
	AngleCorrection bool

	// NumCores bounds the per-slice worker pool; zero or negative means
	// all available cores
	NumCores int

	// ResampleTarget is the in-plane spacing in mm to resample to before
	// measurement; zero picks the minimum input spacing
	ResampleTarget float64

	// Centerline, when set, bypasses extraction entirely and supplies
	// the tangent table and fit diagnostics directly
	Centerline *centerline.Curve

	// CenterlineVolume, when set, is used instead of the segmentation
	// for centerline extraction (useful when the segmentation is
	// irregularly shaped)
	CenterlineVolume *models.Volume

	// CenterlineParams controls centerline smoothing
	CenterlineParams centerline.Params

	// Progress, when non-nil, is called after each measured slice. It is
	// observational only and must not affect results.
	Progress func(done, total int)

	// Warnf receives per-slice warnings; defaults to log.Printf
	Warnf func(format string, args ...interface{})
}

// sliceResult carries one slice's measurement back to the collector.
type sliceResult struct {
	z       int
	meas    *Measurement
	angleAP float64
	angleRL float64
	err     error
}

// ComputeShape measures every occupied axial slice of the segmentation and
// returns the dense per-slice metric table plus the centerline fit
// diagnostics (nil when angle correction is disabled). Degenerate slices
// are logged and left as NaN; the only fatal configuration error is a
// centerline that does not cover the occupied slice range.
func ComputeShape(seg *models.Volume, opts Options) (*Metrics, *centerline.FitResults, error) {
	warnf := opts.Warnf
	if warnf == nil {
		warnf = log.Printf
	}

	numCores := opts.NumCores
	if numCores <= 0 {
		numCores = runtime.NumCPU()
	}

	// Resample to isotropic in-plane resolution so shape statistics see
	// square pixels.
	vol, err := resample.InPlane(seg, opts.ResampleTarget)
	if err != nil {
		return nil, nil, fmt.Errorf("resampling failed: %w", err)
	}

	minZ, maxZ, ok := vol.OccupiedRange(models.NearZeroThreshold)
	if !ok {
		return nil, nil, fmt.Errorf("segmentation contains no voxels above %g", models.NearZeroThreshold)
	}

	metrics := NewMetrics(vol.Nz)

	var curve *centerline.Curve
	var fit *centerline.FitResults
	if opts.AngleCorrection {
		curve = opts.Centerline
		if curve == nil {
			src := vol
			if opts.CenterlineVolume != nil {
				src, err = resample.InPlane(opts.CenterlineVolume, opts.ResampleTarget)
				if err != nil {
					return nil, nil, fmt.Errorf("centerline resampling failed: %w", err)
				}
			}
			curve, err = centerline.Extract(src, opts.CenterlineParams)
			if err != nil {
				return nil, nil, err
			}
		}
		fit = curve.Fit

		if missing := curve.MissingSlices(minZ, maxZ); len(missing) > 0 {
			return nil, nil, &MissingSlicesError{Slices: missing}
		}
	}

	// Per-slice measurements are independent, so fan the occupied range
	// out over a bounded worker pool. Each row of the table belongs to
	// exactly one slice; the collector below is the only writer.
	jobs := make(chan int)
	results := make(chan sliceResult)

	var wg sync.WaitGroup
	for w := 0; w < numCores; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range jobs {
				results <- measureSlice(vol, z, curve, opts.AngleCorrection)
			}
		}()
	}

	go func() {
		for z := minZ; z <= maxZ; z++ {
			jobs <- z
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	total := maxZ - minZ + 1
	done := 0
	for res := range results {
		done++
		if res.err != nil {
			warnf("no properties for slice %d: %v", res.z, res.err)
		} else {
			writeRow(metrics, vol, res)
		}
		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	return metrics, fit, nil
}

// measureSlice runs the per-slice pipeline: patch extraction, optional
// angle correction, then region measurement.
func measureSlice(vol *models.Volume, z int, curve *centerline.Curve, angleCorrection bool) sliceResult {
	res := sliceResult{z: z}

	patch, err := vol.Patch(z)
	if err != nil {
		res.err = err
		return res
	}

	if angleCorrection {
		// Coverage was checked up front, so the tangent exists.
		tangent := curve.Tangents[z]
		res.angleAP, res.angleRL = SliceAngles(tangent, vol.Px, vol.Py, vol.Pz)
		patch = CorrectPatch(patch, res.angleAP, res.angleRL)
	}

	res.meas, res.err = MeasurePatch(patch, vol.Px, vol.Py)
	return res
}

// writeRow fills one slice's entries of the metric table.
func writeRow(m *Metrics, vol *models.Volume, res sliceResult) {
	z := res.z
	m.Values["area"][z] = res.meas.Area
	m.Values["angle_AP"][z] = res.angleAP * 180.0 / math.Pi
	m.Values["angle_RL"][z] = res.angleRL * 180.0 / math.Pi
	m.Values["diameter_AP"][z] = res.meas.DiameterAP
	m.Values["diameter_RL"][z] = res.meas.DiameterRL
	m.Values["eccentricity"][z] = res.meas.Eccentricity
	m.Values["orientation"][z] = res.meas.OrientationDeg
	m.Values["solidity"][z] = res.meas.Solidity
	m.Values["length"][z] = vol.Pz / (math.Cos(res.angleAP) * math.Cos(res.angleRL))
}
