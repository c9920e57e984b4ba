// Package morphometry computes per-slice shape measurements of a tubular
// segmentation: cross-sectional area, AP/RL diameters, eccentricity,
// orientation and solidity, with optional correction for the angle between
// the acquisition plane and the local axis of the structure.
package morphometry

import (
	"math"

	"cordmorph/internal/models"
	"cordmorph/pkg/centerline"
)

// SliceAngles derives the tilt of the structure's axis at one slice from
// the centerline tangent. The tangent components are in grid units and are
// converted to physical units against the through-plane spacing, so the
// angles are the rotations of the local axis about the AP and RL anatomical
// axes.
func SliceAngles(t centerline.Tangent, px, py, pz float64) (angleAP, angleRL float64) {
	angleAP = math.Atan2(t.DX*px, pz)
	angleRL = math.Atan2(t.DY*py, pz)
	return angleAP, angleRL
}

// CorrectPatch de-skews a slice patch by scaling the x axis by cos(angleAP)
// and the y axis by cos(angleRL), shrinking the oblique cross-section back
// to the geometry of a perpendicular cut. The transform has no shear or
// translation and is anchored at the patch origin. Sampling is first-order
// with zero fill past the patch bounds, and the output shape equals the
// input shape.
func CorrectPatch(p *models.Patch, angleAP, angleRL float64) *models.Patch {
	sx := math.Cos(angleAP)
	sy := math.Cos(angleRL)
	if sx == 1 && sy == 1 {
		return p
	}

	out := models.NewPatch(p.Nx, p.Ny)
	for y := 0; y < p.Ny; y++ {
		srcY := float64(y) / sy
		for x := 0; x < p.Nx; x++ {
			srcX := float64(x) / sx
			out.Set(x, y, p.BilinearZero(srcX, srcY))
		}
	}

	return out
}
