// Package qc renders axial slices of a segmentation volume to grayscale
// PNG images for visual review of the measured masks.
package qc

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"cordmorph/internal/models"
)

// SliceImage renders the axial slice at index z to a 16-bit grayscale
// image. Values are window-scaled against the slice maximum, so both
// binary and partial-volume masks remain visible.
func SliceImage(vol *models.Volume, z int) (image.Image, error) {
	patch, err := vol.Patch(z)
	if err != nil {
		return nil, err
	}

	_, max := patch.MinMax()

	img := image.NewGray16(image.Rect(0, 0, patch.Nx, patch.Ny))
	for y := 0; y < patch.Ny; y++ {
		for x := 0; x < patch.Nx; x++ {
			v := patch.At(x, y)
			if max > 0 {
				v /= max
			}
			value := uint16(math.Max(0, math.Min(65535, v*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return img, nil
}

// SaveSliceRange writes one PNG per slice in [minZ, maxZ] into dir, named
// by slice index.
func SaveSliceRange(vol *models.Volume, minZ, maxZ int, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create QC directory: %w", err)
	}

	for z := minZ; z <= maxZ; z++ {
		img, err := SliceImage(vol, z)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, fmt.Sprintf("slice_%03d.png", z))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create QC image: %w", err)
		}

		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode QC image: %w", err)
		}
		f.Close()
	}

	return nil
}
