// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"image"
	"math"
)

// geometry holds one camera-space unit ray per output pixel for a given
// size and horizontal field of view. It is rebuilt when the FOV changes.
type geometry struct {
	width, height int
	hfov          float64
	rays          []float64 // x, y, z triples
}

func newGeometry(width, height int, hfovDeg float64) *geometry {
	g := &geometry{
		width:  width,
		height: height,
		hfov:   hfovDeg,
		rays:   make([]float64, 0, width*height*3),
	}
	f := float64(width) / 2 / math.Tan(hfovDeg*math.Pi/360)
	cx, cy := float64(width)/2, float64(height)/2
	for y := 0; y < height; y++ {
		dy := cy - (float64(y) + 0.5)
		for x := 0; x < width; x++ {
			dx := float64(x) + 0.5 - cx
			n := math.Sqrt(dx*dx + dy*dy + f*f)
			g.rays = append(g.rays, dx/n, dy/n, f/n)
		}
	}
	return g
}

// project renders tex into dst looking at yaw/pitch in degrees. Yaw turns
// right around the vertical axis; positive pitch looks up.
func (g *geometry) project(dst *image.RGBA, tex *texture, yawDeg, pitchDeg float64) {
	sy, cy := math.Sincos(yawDeg * math.Pi / 180)
	sp, cp := math.Sincos(pitchDeg * math.Pi / 180)

	i := 0
	for y := 0; y < g.height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < g.width; x++ {
			rx, ry, rz := g.rays[i], g.rays[i+1], g.rays[i+2]
			i += 3

			// Pitch about X, then yaw about Y.
			py := ry*cp + rz*sp
			pz := -ry*sp + rz*cp
			wx := rx*cy + pz*sy
			wz := -rx*sy + pz*cy

			lon := math.Atan2(wx, wz)
			lat := math.Asin(max(-1, min(1, py)))

			s := tex.sample(lon, lat)
			d := row[x*4 : x*4+4 : x*4+4]
			copy(d, tex.pix[s:s+4])
		}
	}
}

func (g *geometry) release() {
	g.rays = nil
}
