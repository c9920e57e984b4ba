package models

import (
	"fmt"
)

// NearZeroThreshold separates occupied voxels from background. Linear
// resampling can turn exact zeros into values around 1e-16, so occupancy
// tests compare against a small positive threshold instead of zero.
const NearZeroThreshold = 1e-6

// Volume represents a 3D segmentation volume in RPI anatomical order.
// Axis 0 (x) runs right-left, axis 1 (y) posterior-anterior and axis 2 (z)
// inferior-superior. Values may be binary or continuous partial-volume
// weights in [0,1].
type Volume struct {
	// Data is the volume data as a 1D array in row-major order,
	// indexed as z*Nx*Ny + y*Nx + x
	Data []float64

	// Nx, Ny, Nz are the volume dimensions in voxels
	Nx, Ny, Nz int

	// Px, Py, Pz are the voxel spacings in mm along x, y and z
	Px, Py, Pz float64
}

// NewVolume allocates a zero-filled volume with the given dimensions and
// voxel spacing.
func NewVolume(nx, ny, nz int, px, py, pz float64) *Volume {
	return &Volume{
		Data: make([]float64, nx*ny*nz),
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Px:   px,
		Py:   py,
		Pz:   pz,
	}
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Nx*v.Ny+y*v.Nx+x]
}

// Set writes the voxel value at (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[z*v.Nx*v.Ny+y*v.Nx+x] = value
}

// Patch extracts the 2D axial slice at index z as a copy. The patch keeps
// the in-plane axis order of the volume (x = RL, y = PA).
func (v *Volume) Patch(z int) (*Patch, error) {
	if z < 0 || z >= v.Nz {
		return nil, fmt.Errorf("slice index %d out of range [0, %d)", z, v.Nz)
	}

	p := NewPatch(v.Nx, v.Ny)
	copy(p.Data, v.Data[z*v.Nx*v.Ny:(z+1)*v.Nx*v.Ny])
	return p, nil
}

// OccupiedRange returns the minimum and maximum slice indices that contain
// at least one voxel above the given threshold. ok is false when no voxel
// exceeds the threshold anywhere in the volume.
func (v *Volume) OccupiedRange(threshold float64) (minZ, maxZ int, ok bool) {
	minZ, maxZ = -1, -1
	sliceSize := v.Nx * v.Ny

	for z := 0; z < v.Nz; z++ {
		occupied := false
		for i := z * sliceSize; i < (z+1)*sliceSize; i++ {
			if v.Data[i] > threshold {
				occupied = true
				break
			}
		}
		if !occupied {
			continue
		}
		if minZ < 0 {
			minZ = z
		}
		maxZ = z
	}

	return minZ, maxZ, minZ >= 0
}

// Patch is a single 2D axial slice with continuous values. It is transient:
// created per slice, transformed in place or replaced, then discarded.
type Patch struct {
	// Data is the patch data in row-major order, indexed as y*Nx + x
	Data []float64

	// Nx, Ny are the patch dimensions in pixels
	Nx, Ny int
}

// NewPatch allocates a zero-filled patch with the given dimensions.
func NewPatch(nx, ny int) *Patch {
	return &Patch{
		Data: make([]float64, nx*ny),
		Nx:   nx,
		Ny:   ny,
	}
}

// At returns the pixel value at (x, y).
func (p *Patch) At(x, y int) float64 {
	return p.Data[y*p.Nx+x]
}

// Set writes the pixel value at (x, y).
func (p *Patch) Set(x, y int, value float64) {
	p.Data[y*p.Nx+x] = value
}

// MinMax returns the minimum and maximum values in the patch.
func (p *Patch) MinMax() (min, max float64) {
	if len(p.Data) == 0 {
		return 0, 0
	}

	min = p.Data[0]
	max = p.Data[0]
	for _, v := range p.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return min, max
}

// Sum returns the sum of all pixel values in the patch.
func (p *Patch) Sum() float64 {
	total := 0.0
	for _, v := range p.Data {
		total += v
	}
	return total
}

// AllBelow reports whether every pixel value is below the given threshold.
func (p *Patch) AllBelow(threshold float64) bool {
	for _, v := range p.Data {
		if v >= threshold {
			return false
		}
	}
	return true
}
