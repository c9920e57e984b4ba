// Package nii loads NIfTI-1 segmentation volumes (.nii or .nii.gz) into the
// internal volume representation. Input volumes are expected to already be
// in RPI orientation; reorientation is the responsibility of the upstream
// pipeline that produced the segmentation.
package nii

import (
	"fmt"
	"os"

	"github.com/henghuang/nifti"

	"cordmorph/internal/models"
)

// Load reads a NIfTI-1 file and returns its first volume with voxel
// spacings taken from the header pixdims.
func Load(path string) (*models.Volume, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	img, err := safelyParseImage(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	hdr, err := safelyParseHeader(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dims := img.GetDims()
	nx, ny, nz := dims[0], dims[1], dims[2]
	if nx == 0 || ny == 0 || nz == 0 {
		return nil, fmt.Errorf("%s: degenerate volume dimensions %v", path, dims)
	}

	px := float64(hdr.Pixdim[1])
	py := float64(hdr.Pixdim[2])
	pz := float64(hdr.Pixdim[3])
	if px <= 0 || py <= 0 || pz <= 0 {
		return nil, fmt.Errorf("%s: non-positive voxel spacing (%g, %g, %g)", path, px, py, pz)
	}

	vol := models.NewVolume(nx, ny, nz, px, py, pz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				vol.Set(x, y, z, float64(img.GetAt(x, y, z, 0)))
			}
		}
	}

	return vol, nil
}

// The NIfTI parser panics on malformed input, so parsing is wrapped to turn
// panics into recoverable errors.

func safelyParseImage(path string) (img nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("error parsing NIfTI image: %v", panicErr)
		}
	}()

	img.LoadImage(path, true)

	return
}

func safelyParseHeader(path string) (hdr nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("error parsing NIfTI header: %v", panicErr)
		}
	}()

	hdr.LoadHeader(path)

	return
}
