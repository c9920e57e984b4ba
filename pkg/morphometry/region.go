package morphometry

import (
	"errors"
	"math"

	"github.com/theodesp/unionfind"

	"cordmorph/internal/models"
)

const (
	// upscale is the oversampling factor applied to the cropped region
	// before measuring. Cross-sections are typically a few dozen pixels
	// across, so shape statistics on the raw grid would be quantized.
	upscale = 5

	// cropPad is the margin in pixels kept around the region bounding box
	cropPad = 3

	// binarizeThreshold separates object from background on a patch
	// normalized to [0,1]
	binarizeThreshold = 0.5
)

// Degenerate slices are reported through sentinel errors so the driver can
// mark the row as not-available and keep going.
var (
	// ErrEmptySlice means every value in the patch is below the
	// near-zero occupancy threshold
	ErrEmptySlice = errors.New("slice is empty")

	// ErrMultipleRegions means the binarized patch contains more than
	// one connected object, which makes the measurement ambiguous
	ErrMultipleRegions = errors.New("more than one object on slice")
)

// Measurement holds the raw per-slice region statistics in patch-local
// units, plus the physically scaled area and diameters.
type Measurement struct {
	// Area is the partial-volume weighted cross-sectional area in mm²
	Area float64

	// DiameterAP and DiameterRL are the anatomical diameters in mm,
	// assigned from the ellipse axis pair
	DiameterAP float64
	DiameterRL float64

	// MajorAxis and MinorAxis are the ellipse axis lengths in
	// oversampled pixels
	MajorAxis float64
	MinorAxis float64

	// OrientationDeg is the folded ellipse orientation in [0, 90] degrees
	OrientationDeg float64

	// Eccentricity of the fitted ellipse, in [0, 1]
	Eccentricity float64

	// Solidity is the ratio of region area to convex hull area. NaN when
	// the hull computation is numerically unreliable for this region.
	Solidity float64

	// CentroidX and CentroidY locate the region center in oversampled
	// crop pixels
	CentroidX float64
	CentroidY float64
}

// MeasurePatch computes the shape statistics of the single object expected
// in the patch. px and py are the physical pixel sizes in mm. A degenerate
// patch returns ErrEmptySlice or ErrMultipleRegions; a well-formed
// single-object patch never fails.
func MeasurePatch(p *models.Patch, px, py float64) (*Measurement, error) {
	if p.AllBelow(models.NearZeroThreshold) {
		return nil, ErrEmptySlice
	}

	norm := normalizePatch(p)
	mask := binarize(norm)

	count, bounds := labelRegions(mask, norm.Nx, norm.Ny)
	if count == 0 {
		return nil, ErrEmptySlice
	}
	if count > 1 {
		return nil, ErrMultipleRegions
	}

	crop := cropPadded(norm, bounds)
	cropR := pyramidExpand(crop, upscale)
	maskR := binarize(cropR)

	// Weighted area over the full oversampled crop, scaled to mm² and
	// corrected for the oversampling factor.
	area := cropR.Sum() * px * py / (upscale * upscale)

	stats := momentStats(maskR, cropR.Nx, cropR.Ny)
	orientation := FoldOrientation(stats.orientationRad)

	// Axis lengths are in oversampled pixels, so the physical pixel size
	// shrinks by the same factor.
	diameterAP, diameterRL := ResolveDiameters(
		stats.majorAxis, stats.minorAxis, orientation, px/upscale, py/upscale)

	return &Measurement{
		Area:           area,
		DiameterAP:     diameterAP,
		DiameterRL:     diameterRL,
		MajorAxis:      stats.majorAxis,
		MinorAxis:      stats.minorAxis,
		OrientationDeg: orientation,
		Eccentricity:   stats.eccentricity,
		Solidity:       solidityOf(maskR, cropR.Nx, cropR.Ny, stats.pixelCount),
		CentroidX:      stats.centroidX,
		CentroidY:      stats.centroidY,
	}, nil
}

// normalizePatch rescales values to [0,1]. A constant patch that survived
// the emptiness test is all object, so it maps to ones.
func normalizePatch(p *models.Patch) *models.Patch {
	min, max := p.MinMax()
	out := models.NewPatch(p.Nx, p.Ny)

	if max-min < 1e-12 {
		for i := range out.Data {
			out.Data[i] = 1
		}
		return out
	}

	for i, v := range p.Data {
		out.Data[i] = (v - min) / (max - min)
	}
	return out
}

// binarize thresholds a normalized patch into an object mask.
func binarize(p *models.Patch) []bool {
	mask := make([]bool, len(p.Data))
	for i, v := range p.Data {
		mask[i] = v > binarizeThreshold
	}
	return mask
}

// bbox is an inclusive bounding box in patch pixels.
type bbox struct {
	minX, minY, maxX, maxY int
}

// labelRegions counts the 8-connected components of the mask using two-pass
// union-find labeling, and returns the bounding box over all object pixels
// (which equals the region bounding box when there is exactly one).
func labelRegions(mask []bool, nx, ny int) (int, bbox) {
	labels := make([]int, len(mask))
	uf := unionfind.NewThreadSafeUnionFind(nx*ny + 2)

	bounds := bbox{minX: nx, minY: ny, maxX: -1, maxY: -1}
	nextLabel := 1

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			i := y*nx + x
			if !mask[i] {
				continue
			}

			if x < bounds.minX {
				bounds.minX = x
			}
			if x > bounds.maxX {
				bounds.maxX = x
			}
			if y < bounds.minY {
				bounds.minY = y
			}
			if y > bounds.maxY {
				bounds.maxY = y
			}

			// Raster order means left, up-left, up and up-right
			// neighbors already carry labels.
			best := 0
			neighbor := func(nxi, nyi int) {
				if nxi < 0 || nxi >= nx || nyi < 0 || nyi >= ny {
					return
				}
				l := labels[nyi*nx+nxi]
				if l == 0 {
					return
				}
				if best == 0 {
					best = l
					return
				}
				if l != best {
					uf.Union(best, l)
					if l < best {
						best = l
					}
				}
			}
			neighbor(x-1, y)
			neighbor(x-1, y-1)
			neighbor(x, y-1)
			neighbor(x+1, y-1)

			if best == 0 {
				best = nextLabel
				nextLabel++
			}
			labels[i] = best
		}
	}

	// Second pass: collapse provisional labels onto their roots and count
	// the distinct regions.
	roots := make(map[int]struct{})
	for _, l := range labels {
		if l == 0 {
			continue
		}
		root := uf.Root(l)
		if root < 0 {
			// Label never took part in a union
			root = l
		}
		roots[root] = struct{}{}
	}

	return len(roots), bounds
}

// cropPadded extracts the bounding box plus a fixed margin, clipped to the
// patch bounds.
func cropPadded(p *models.Patch, b bbox) *models.Patch {
	x0 := b.minX - cropPad
	if x0 < 0 {
		x0 = 0
	}
	y0 := b.minY - cropPad
	if y0 < 0 {
		y0 = 0
	}
	x1 := b.maxX + 1 + cropPad
	if x1 > p.Nx {
		x1 = p.Nx
	}
	y1 := b.maxY + 1 + cropPad
	if y1 > p.Ny {
		y1 = p.Ny
	}

	out := models.NewPatch(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			out.Set(x-x0, y-y0, p.At(x, y))
		}
	}
	return out
}

// pyramidExpand upsamples the patch by an integer factor with first-order
// interpolation, then smooths with the pyramid's default Gaussian
// (sigma = 2*factor/6) so the oversampled mask edge is sub-pixel accurate
// rather than blocky.
func pyramidExpand(p *models.Patch, factor int) *models.Patch {
	nx := p.Nx * factor
	ny := p.Ny * factor
	resized := models.NewPatch(nx, ny)

	s := 1.0 / float64(factor)
	for y := 0; y < ny; y++ {
		srcY := (float64(y)+0.5)*s - 0.5
		for x := 0; x < nx; x++ {
			srcX := (float64(x)+0.5)*s - 0.5
			resized.Set(x, y, p.BilinearClamp(srcX, srcY))
		}
	}

	sigma := 2.0 * float64(factor) / 6.0
	return gaussianSmooth(resized, sigma)
}

// gaussianSmooth applies a separable normalized Gaussian with reflected
// boundaries, preserving total mass up to edge effects.
func gaussianSmooth(p *models.Patch, sigma float64) *models.Patch {
	radius := int(math.Ceil(4 * sigma))
	if radius < 1 {
		return p
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	reflect := func(i, n int) int {
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return i
	}

	// Horizontal pass
	tmp := models.NewPatch(p.Nx, p.Ny)
	for y := 0; y < p.Ny; y++ {
		for x := 0; x < p.Nx; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * p.At(reflect(x+k-radius, p.Nx), y)
			}
			tmp.Set(x, y, acc)
		}
	}

	// Vertical pass
	out := models.NewPatch(p.Nx, p.Ny)
	for y := 0; y < p.Ny; y++ {
		for x := 0; x < p.Nx; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * tmp.At(x, reflect(y+k-radius, p.Ny))
			}
			out.Set(x, y, acc)
		}
	}

	return out
}

// regionStats are the second-moment ellipse statistics of a binary region.
type regionStats struct {
	pixelCount     int
	centroidX      float64
	centroidY      float64
	majorAxis      float64
	minorAxis      float64
	orientationRad float64
	eccentricity   float64
}

// momentStats fits an ellipse to the mask via raw and central image
// moments. Axis lengths follow the standard normalized-second-moment
// convention (4*sqrt(eigenvalue)), so a solid disk of radius r yields a
// major axis of 2r.
func momentStats(mask []bool, nx, ny int) regionStats {
	var m00, m10, m01, m11, m20, m02 float64
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			if !mask[y*nx+x] {
				continue
			}
			fx := float64(x)
			fy := float64(y)
			m00++
			m10 += fx
			m01 += fy
			m11 += fx * fy
			m20 += fx * fx
			m02 += fy * fy
		}
	}

	if m00 == 0 {
		return regionStats{}
	}

	meanX := m10 / m00
	meanY := m01 / m00

	// Normalized central moments
	mu20 := m20/m00 - meanX*meanX
	mu02 := m02/m00 - meanY*meanY
	mu11 := m11/m00 - meanX*meanY

	// Eigenvalues of the covariance matrix
	common := math.Sqrt(math.Pow((mu20-mu02)/2, 2) + mu11*mu11)
	eigMajor := (mu20+mu02)/2 + common
	eigMinor := (mu20+mu02)/2 - common
	if eigMinor < 0 {
		eigMinor = 0
	}

	stats := regionStats{
		pixelCount: int(m00),
		centroidX:  meanX,
		centroidY:  meanY,
		majorAxis:  4 * math.Sqrt(eigMajor),
		minorAxis:  4 * math.Sqrt(eigMinor),
	}

	if mu20 != mu02 || mu11 != 0 {
		stats.orientationRad = 0.5 * math.Atan2(2*mu11, mu20-mu02)
	}
	if eigMajor > 0 {
		stats.eccentricity = math.Sqrt(1 - eigMinor/eigMajor)
	}

	return stats
}

// solidityOf computes region area over convex hull area, taking the hull
// over pixel corners so the hull encloses the full pixel extent. Values
// outside [0,1] indicate an unreliable hull and are reported as NaN rather
// than propagated.
func solidityOf(mask []bool, nx, ny int, pixelCount int) float64 {
	if pixelCount == 0 {
		return math.NaN()
	}

	// Corner points of boundary pixels are enough to define the hull.
	var corners []point
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			if !mask[y*nx+x] {
				continue
			}
			if !isBoundary(mask, nx, ny, x, y) {
				continue
			}
			fx := float64(x)
			fy := float64(y)
			corners = append(corners,
				point{fx - 0.5, fy - 0.5},
				point{fx + 0.5, fy - 0.5},
				point{fx - 0.5, fy + 0.5},
				point{fx + 0.5, fy + 0.5},
			)
		}
	}

	hullArea := polygonArea(convexHull(corners))
	if hullArea <= 0 {
		return math.NaN()
	}

	solidity := float64(pixelCount) / hullArea
	if solidity < 0 || solidity > 1 {
		return math.NaN()
	}
	return solidity
}

func isBoundary(mask []bool, nx, ny, x, y int) bool {
	if x == 0 || y == 0 || x == nx-1 || y == ny-1 {
		return true
	}
	return !mask[y*nx+x-1] || !mask[y*nx+x+1] ||
		!mask[(y-1)*nx+x] || !mask[(y+1)*nx+x]
}
