// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// DefaultMaxTextureWidth caps texture width; larger images are downscaled.
const DefaultMaxTextureWidth = 4096

// texture is a decoded equirectangular image in RGBA layout.
type texture struct {
	pix    []uint8
	width  int
	height int
	stride int
}

func newTexture(img image.Image, maxWidth int) *texture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || w != b.Dx() || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		if w == b.Dx() && h == b.Dy() {
			xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
		} else {
			xdraw.BiLinear.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)
		}
	}
	return &texture{pix: rgba.Pix, width: w, height: h, stride: rgba.Stride}
}

// sample returns the texel offset for longitude/latitude in radians.
// Longitude wraps; latitude clamps.
func (t *texture) sample(lon, lat float64) int {
	u := (lon/(2*math.Pi) + 0.5) * float64(t.width)
	v := (0.5 - lat/math.Pi) * float64(t.height)

	x := int(math.Floor(u)) % t.width
	if x < 0 {
		x += t.width
	}
	y := min(max(int(math.Floor(v)), 0), t.height-1)
	return y*t.stride + x*4
}

func (t *texture) release() {
	t.pix = nil
}

func (t *texture) released() bool { return t.pix == nil }

// Thumbnail scales img into a width x height RGBA image.
func Thumbnail(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
