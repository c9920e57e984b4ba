package morphometry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"cordmorph/internal/models"
	"cordmorph/pkg/centerline"
)

// cylinderVolume builds a synthetic volume holding a straight axial
// cylinder of the given radius between slices z0 and z1 inclusive
func cylinderVolume(nx, ny, nz int, px, py, pz, r float64, z0, z1 int) *models.Volume {
	vol := models.NewVolume(nx, ny, nz, px, py, pz)
	cx := float64(nx) / 2
	cy := float64(ny) / 2

	for z := z0; z <= z1; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				dx := float64(x) - cx
				dy := float64(y) - cy
				if dx*dx+dy*dy <= r*r {
					vol.Set(x, y, z, 1)
				}
			}
		}
	}

	return vol
}

// TestComputeShapeCylinder runs the end-to-end scenario: a straight
// cylinder of radius 10 with spacing (1, 1, 2) mm must give a per-slice
// area near pi*r^2, both diameters near 2r, and a length equal to the slice
// thickness
func TestComputeShapeCylinder(t *testing.T) {
	const r = 10.0
	vol := cylinderVolume(48, 48, 12, 1, 1, 2, r, 2, 9)

	metrics, fit, err := ComputeShape(vol, Options{
		AngleCorrection: true,
		NumCores:        2,
	})
	if err != nil {
		t.Fatalf("ComputeShape failed: %v", err)
	}
	if fit == nil {
		t.Fatal("expected fit results with angle correction enabled")
	}

	expectedArea := math.Pi * r * r
	for z := 2; z <= 9; z++ {
		area := metrics.Get("area")[z]
		if math.IsNaN(area) {
			t.Fatalf("slice %d: expected measurement, got NaN", z)
		}
		if relErr := math.Abs(area-expectedArea) / expectedArea; relErr > 0.05 {
			t.Errorf("slice %d area: expected %f within 5%%, got %f", z, expectedArea, area)
		}

		for _, name := range []string{"diameter_AP", "diameter_RL"} {
			d := metrics.Get(name)[z]
			if relErr := math.Abs(d-2*r) / (2 * r); relErr > 0.08 {
				t.Errorf("slice %d %s: expected %f within 8%%, got %f", z, name, 2*r, d)
			}
		}

		if ecc := metrics.Get("eccentricity")[z]; ecc > 0.4 {
			t.Errorf("slice %d eccentricity: expected near zero, got %f", z, ecc)
		}

		// A straight centerline means no tilt and an uncorrected
		// slice thickness
		if length := metrics.Get("length")[z]; math.Abs(length-2) > 1e-6 {
			t.Errorf("slice %d length: expected 2, got %f", z, length)
		}
	}

	// Rows outside the occupied range stay not-available
	for _, z := range []int{0, 1, 10, 11} {
		for _, name := range MetricNames {
			if v := metrics.Get(name)[z]; !math.IsNaN(v) {
				t.Errorf("slice %d %s: expected NaN outside occupied range, got %f", z, name, v)
			}
		}
	}
}

// TestComputeShapeNoAngleCorrection verifies the round-trip property:
// without angle correction the angles are exactly zero and the length is
// exactly the slice spacing
func TestComputeShapeNoAngleCorrection(t *testing.T) {
	vol := cylinderVolume(40, 40, 8, 1, 1, 2, 8, 1, 6)

	metrics, fit, err := ComputeShape(vol, Options{AngleCorrection: false})
	if err != nil {
		t.Fatalf("ComputeShape failed: %v", err)
	}
	if fit != nil {
		t.Error("expected nil fit results with angle correction disabled")
	}

	for z := 1; z <= 6; z++ {
		if ap := metrics.Get("angle_AP")[z]; ap != 0 {
			t.Errorf("slice %d angle_AP: expected exactly 0, got %f", z, ap)
		}
		if rl := metrics.Get("angle_RL")[z]; rl != 0 {
			t.Errorf("slice %d angle_RL: expected exactly 0, got %f", z, rl)
		}
		if length := metrics.Get("length")[z]; length != 2 {
			t.Errorf("slice %d length: expected exactly pz=2, got %f", z, length)
		}
	}
}

// TestComputeShapeMissingCoverage verifies the fatal configuration error:
// a tangent table that omits one occupied slice must abort the whole run
// and name the uncovered slice
func TestComputeShapeMissingCoverage(t *testing.T) {
	vol := cylinderVolume(40, 40, 11, 1, 1, 2, 8, 0, 10)

	tangents := make(map[int]centerline.Tangent)
	for z := 0; z <= 10; z++ {
		if z == 7 {
			continue
		}
		tangents[z] = centerline.Tangent{}
	}

	_, _, err := ComputeShape(vol, Options{
		AngleCorrection: true,
		Centerline:      &centerline.Curve{Tangents: tangents},
	})
	if err == nil {
		t.Fatal("expected missing-coverage error")
	}

	var missing *MissingSlicesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingSlicesError, got %T: %v", err, err)
	}
	if len(missing.Slices) != 1 || missing.Slices[0] != 7 {
		t.Errorf("expected missing slice [7], got %v", missing.Slices)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("error message should name slice 7: %q", err.Error())
	}
}

// TestComputeShapeEmptySegmentation verifies that a volume with no
// occupied voxels is rejected up front
func TestComputeShapeEmptySegmentation(t *testing.T) {
	vol := models.NewVolume(20, 20, 5, 1, 1, 1)

	if _, _, err := ComputeShape(vol, Options{}); err == nil {
		t.Fatal("expected error for empty segmentation")
	}
}

// TestComputeShapeDegenerateSliceWarns verifies that a slice with two
// disjoint blobs is reported as a warning and left not-available while the
// rest of the volume is still measured
func TestComputeShapeDegenerateSliceWarns(t *testing.T) {
	vol := cylinderVolume(40, 40, 8, 1, 1, 1, 8, 1, 6)

	// Replace slice 4 with two disjoint blobs
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			vol.Set(x, y, 4, 0)
		}
	}
	for y := 5; y < 10; y++ {
		for x := 5; x < 10; x++ {
			vol.Set(x, y, 4, 1)
		}
	}
	for y := 25; y < 30; y++ {
		for x := 25; x < 30; x++ {
			vol.Set(x, y, 4, 1)
		}
	}

	var warnings []string
	metrics, _, err := ComputeShape(vol, Options{
		AngleCorrection: false,
		Warnf: func(format string, args ...interface{}) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		},
	})
	if err != nil {
		t.Fatalf("ComputeShape failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "4") {
		t.Errorf("expected one warning naming slice 4, got %v", warnings)
	}

	for _, name := range MetricNames {
		if v := metrics.Get(name)[4]; !math.IsNaN(v) {
			t.Errorf("degenerate slice metric %s: expected NaN, got %f", name, v)
		}
	}
	for _, z := range []int{1, 2, 3, 5, 6} {
		if v := metrics.Get("area")[z]; math.IsNaN(v) {
			t.Errorf("slice %d: expected a measurement, got NaN", z)
		}
	}
}

// TestComputeShapeProgress verifies the observational progress callback
// sees every occupied slice exactly once
func TestComputeShapeProgress(t *testing.T) {
	vol := cylinderVolume(30, 30, 6, 1, 1, 1, 6, 1, 3)

	var calls int
	var lastTotal int
	_, _, err := ComputeShape(vol, Options{
		Progress: func(done, total int) {
			calls++
			lastTotal = total
		},
	})
	if err != nil {
		t.Fatalf("ComputeShape failed: %v", err)
	}

	if calls != 3 || lastTotal != 3 {
		t.Errorf("expected 3 progress calls with total 3, got %d calls, total %d", calls, lastTotal)
	}
}

// TestFormatSliceList checks the compact range rendering used in the fatal
// coverage error
func TestFormatSliceList(t *testing.T) {
	cases := []struct {
		slices   []int
		expected string
	}{
		{[]int{7}, "7"},
		{[]int{2, 3, 4}, "2:4"},
		{[]int{2, 3, 4, 7}, "2:4;7"},
		{[]int{1, 3, 5}, "1;3;5"},
	}

	for _, c := range cases {
		if got := formatSliceList(c.slices); got != c.expected {
			t.Errorf("formatSliceList(%v): expected %q, got %q", c.slices, got, c.expected)
		}
	}
}
