// Package resample provides in-plane resampling of segmentation volumes to
// an isotropic axial grid. Shape measurements assume square pixels, so the
// driver resamples every slice to the same x/y spacing before measuring.
// Linear interpolation keeps continuous partial-volume values intact instead
// of forcing them back to binary.
package resample

import (
	"fmt"
	"math"

	"cordmorph/internal/models"
)

// InPlane resamples each axial slice of the volume to the target in-plane
// spacing (mm) using first-order interpolation. The z grid is untouched.
// A target of zero selects the minimum of the input's in-plane spacings.
func InPlane(vol *models.Volume, target float64) (*models.Volume, error) {
	if vol.Nx == 0 || vol.Ny == 0 || vol.Nz == 0 {
		return nil, fmt.Errorf("cannot resample empty volume")
	}
	if target < 0 {
		return nil, fmt.Errorf("resample target must be non-negative, got %g", target)
	}
	if target == 0 {
		target = math.Min(vol.Px, vol.Py)
	}

	// New grid dimensions preserve the physical field of view.
	nx := int(math.Round(float64(vol.Nx) * vol.Px / target))
	ny := int(math.Round(float64(vol.Ny) * vol.Py / target))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	out := models.NewVolume(nx, ny, vol.Nz, target, target, vol.Pz)

	// Scale factors map output pixel indices back onto the source grid.
	// Pixel centers align at half-pixel offsets, the usual resize
	// convention.
	sx := float64(vol.Nx) / float64(nx)
	sy := float64(vol.Ny) / float64(ny)

	for z := 0; z < vol.Nz; z++ {
		src, err := vol.Patch(z)
		if err != nil {
			return nil, err
		}

		for y := 0; y < ny; y++ {
			srcY := (float64(y)+0.5)*sy - 0.5
			for x := 0; x < nx; x++ {
				srcX := (float64(x)+0.5)*sx - 0.5
				out.Set(x, y, z, src.BilinearClamp(srcX, srcY))
			}
		}
	}

	return out, nil
}
