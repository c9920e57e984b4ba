package models

import "math"

// BilinearZero samples the patch at continuous coordinates (x, y) with
// first-order interpolation. Samples falling outside the patch contribute
// zero, so warped regions with no source data stay empty.
func (p *Patch) BilinearZero(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	value := 0.0
	for dy := 0; dy <= 1; dy++ {
		for dx := 0; dx <= 1; dx++ {
			xi := x0 + dx
			yi := y0 + dy
			if xi < 0 || xi >= p.Nx || yi < 0 || yi >= p.Ny {
				continue
			}

			wx := 1 - fx
			if dx == 1 {
				wx = fx
			}
			wy := 1 - fy
			if dy == 1 {
				wy = fy
			}

			value += wx * wy * p.At(xi, yi)
		}
	}

	return value
}

// BilinearClamp samples the patch at continuous coordinates (x, y) with
// first-order interpolation, clamping coordinates to the patch border so
// edge values extend outward. Used by resampling, where the sampled grid
// stays within a half-pixel of the source extent.
func (p *Patch) BilinearClamp(x, y float64) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float64(p.Nx-1) {
		x = float64(p.Nx - 1)
	}
	if y > float64(p.Ny-1) {
		y = float64(p.Ny - 1)
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= p.Nx {
		x1 = p.Nx - 1
	}
	if y1 >= p.Ny {
		y1 = p.Ny - 1
	}

	fx := x - float64(x0)
	fy := y - float64(y0)

	top := (1-fx)*p.At(x0, y0) + fx*p.At(x1, y0)
	bottom := (1-fx)*p.At(x0, y1) + fx*p.At(x1, y1)

	return (1-fy)*top + fy*bottom
}
