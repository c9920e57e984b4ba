package morphometry

import (
	"errors"
	"math"
	"testing"

	"cordmorph/internal/models"
)

// TestMeasurePatchEmptySlice verifies that a patch with only near-zero
// values reports no measurement instead of zeros
func TestMeasurePatchEmptySlice(t *testing.T) {
	p := models.NewPatch(20, 20)

	if _, err := MeasurePatch(p, 1, 1); !errors.Is(err, ErrEmptySlice) {
		t.Errorf("expected ErrEmptySlice for zero patch, got %v", err)
	}

	// Resampling noise below the threshold still counts as empty
	for i := range p.Data {
		p.Data[i] = 1e-9
	}
	if _, err := MeasurePatch(p, 1, 1); !errors.Is(err, ErrEmptySlice) {
		t.Errorf("expected ErrEmptySlice for sub-threshold patch, got %v", err)
	}
}

// TestMeasurePatchMultipleRegions verifies that two disjoint blobs make the
// slice unmeasurable
func TestMeasurePatchMultipleRegions(t *testing.T) {
	p := models.NewPatch(40, 40)
	fillRect(p, 5, 5, 10, 10, 1)
	fillRect(p, 25, 25, 30, 30, 1)

	if _, err := MeasurePatch(p, 1, 1); !errors.Is(err, ErrMultipleRegions) {
		t.Errorf("expected ErrMultipleRegions, got %v", err)
	}
}

// TestMeasurePatchDiagonalTouchIsOneRegion confirms the 8-connectivity
// rule: blobs touching only at a corner are a single region
func TestMeasurePatchDiagonalTouchIsOneRegion(t *testing.T) {
	p := models.NewPatch(30, 30)
	fillRect(p, 5, 5, 10, 10, 1)
	fillRect(p, 10, 10, 15, 15, 1)

	if _, err := MeasurePatch(p, 1, 1); err != nil {
		t.Errorf("expected diagonal-touching blobs to measure as one region, got %v", err)
	}
}

// TestMeasurePatchSquareArea checks the weighted area of a known binary
// square against pixel_count * px * py, within the oversampling tolerance
func TestMeasurePatchSquareArea(t *testing.T) {
	p := models.NewPatch(30, 30)
	fillRect(p, 10, 10, 20, 20, 1) // 10x10 = 100 pixels

	m, err := MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if relErr := math.Abs(m.Area-100) / 100; relErr > 0.01 {
		t.Errorf("square area: expected 100 within 1%%, got %f (relative error %f)", m.Area, relErr)
	}
}

// TestMeasurePatchSquarePhysicalScaling checks that the area scales with
// the physical pixel size
func TestMeasurePatchSquarePhysicalScaling(t *testing.T) {
	p := models.NewPatch(30, 30)
	fillRect(p, 10, 10, 20, 20, 1)

	m, err := MeasurePatch(p, 0.5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := 100 * 0.5 * 2
	if relErr := math.Abs(m.Area-expected) / expected; relErr > 0.01 {
		t.Errorf("scaled area: expected %f within 1%%, got %f", expected, m.Area)
	}
}

// TestMeasurePatchDisk checks the full statistic set on a pixelated disk:
// near-circular ellipse, valid solidity and diameters close to 2r
func TestMeasurePatchDisk(t *testing.T) {
	const r = 10.0
	p := models.NewPatch(40, 40)
	fillDisk(p, 20, 20, r)

	m, err := MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedArea := math.Pi * r * r
	if relErr := math.Abs(m.Area-expectedArea) / expectedArea; relErr > 0.05 {
		t.Errorf("disk area: expected %f within 5%%, got %f", expectedArea, m.Area)
	}

	if relErr := math.Abs(m.DiameterAP-2*r) / (2 * r); relErr > 0.08 {
		t.Errorf("disk AP diameter: expected %f within 8%%, got %f", 2*r, m.DiameterAP)
	}
	if relErr := math.Abs(m.DiameterRL-2*r) / (2 * r); relErr > 0.08 {
		t.Errorf("disk RL diameter: expected %f within 8%%, got %f", 2*r, m.DiameterRL)
	}

	if m.Eccentricity < 0 || m.Eccentricity > 0.4 {
		t.Errorf("disk eccentricity should be near zero, got %f", m.Eccentricity)
	}

	if m.OrientationDeg < 0 || m.OrientationDeg > 90 {
		t.Errorf("orientation %f outside [0, 90]", m.OrientationDeg)
	}

	// A disk is convex, so solidity must be defined and close to one
	if math.IsNaN(m.Solidity) {
		t.Fatal("disk solidity should be defined")
	}
	if m.Solidity < 0.9 || m.Solidity > 1 {
		t.Errorf("disk solidity: expected in (0.9, 1], got %f", m.Solidity)
	}

	// Centroid lands near the middle of the oversampled crop
	if m.CentroidX <= 0 || m.CentroidY <= 0 {
		t.Errorf("centroid (%f, %f) should be positive", m.CentroidX, m.CentroidY)
	}
}

// TestMeasurePatchElongatedBlob verifies the diameter assignment follows
// the blob's long axis direction
func TestMeasurePatchElongatedBlob(t *testing.T) {
	// Long axis along x (right-left)
	p := models.NewPatch(40, 40)
	fillRect(p, 5, 17, 30, 23, 1)

	m, err := MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.OrientationDeg >= 45 {
		t.Errorf("x-elongated blob: expected orientation < 45, got %f", m.OrientationDeg)
	}
	if m.DiameterRL <= m.DiameterAP {
		t.Errorf("x-elongated blob: expected RL > AP, got RL=%f AP=%f", m.DiameterRL, m.DiameterAP)
	}

	// Long axis along y (posterior-anterior)
	p = models.NewPatch(40, 40)
	fillRect(p, 17, 5, 23, 30, 1)

	m, err = MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.OrientationDeg < 45 {
		t.Errorf("y-elongated blob: expected orientation >= 45, got %f", m.OrientationDeg)
	}
	if m.DiameterAP <= m.DiameterRL {
		t.Errorf("y-elongated blob: expected AP > RL, got AP=%f RL=%f", m.DiameterAP, m.DiameterRL)
	}
}

// TestMeasurePatchPartialVolume checks that continuous weights contribute
// fractionally to the area
func TestMeasurePatchPartialVolume(t *testing.T) {
	p := models.NewPatch(30, 30)
	fillRect(p, 10, 10, 20, 20, 1)
	// Soft border ring at half occupancy stays below the binarization
	// threshold after normalization but still weighs into the area sum
	for x := 9; x < 21; x++ {
		p.Set(x, 9, 0.4)
		p.Set(x, 20, 0.4)
	}

	m, err := MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := 100.0 + 24*0.4
	if relErr := math.Abs(m.Area-expected) / expected; relErr > 0.02 {
		t.Errorf("partial volume area: expected %f within 2%%, got %f", expected, m.Area)
	}
}

// TestMeasurePatchConstantPatch covers the degenerate normalization case
// where every voxel carries the same non-zero weight
func TestMeasurePatchConstantPatch(t *testing.T) {
	p := models.NewPatch(10, 10)
	for i := range p.Data {
		p.Data[i] = 0.8
	}

	m, err := MeasurePatch(p, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if relErr := math.Abs(m.Area-100) / 100; relErr > 0.02 {
		t.Errorf("constant patch area: expected 100 within 2%%, got %f", m.Area)
	}
}

// fillRect sets a half-open rectangle [x0,x1) x [y0,y1) to the given value
func fillRect(p *models.Patch, x0, y0, x1, y1 int, value float64) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			p.Set(x, y, value)
		}
	}
}

// fillDisk sets all pixels whose centers fall within radius r of (cx, cy)
func fillDisk(p *models.Patch, cx, cy, r float64) {
	for y := 0; y < p.Ny; y++ {
		for x := 0; x < p.Nx; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r*r {
				p.Set(x, y, 1)
			}
		}
	}
}
