package main

import (
	"image"

	"github.com/gogpu/gg"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/grid"
	"github.com/gogpu/pano/panorama"
)

// stateColors outline cards by lifecycle state.
var stateColors = map[pano.State][3]float64{
	pano.Idle:              {0.5, 0.5, 0.5},
	pano.AwaitingAdmission: {1, 0.8, 0},
	pano.Active:            {0.2, 0.9, 0.3},
	pano.PendingTeardown:   {0.8, 0.3, 0.9},
	pano.Destroyed:         {0.9, 0.2, 0.2},
}

// compose draws the visible part of the grid: live frames for mounted
// viewers, thumbnails for the rest.
func compose(g *grid.Grid) *gg.Context {
	view := g.Viewport()
	dc := gg.NewContext(view.Dx(), view.Dy())
	dc.SetRGB(0.08, 0.08, 0.1)
	dc.DrawRectangle(0, 0, float64(view.Dx()), float64(view.Dy()))
	_ = dc.Fill()

	for _, id := range g.IDs() {
		r, ok := g.Bounds(id)
		if !ok || !r.Overlaps(view) {
			continue
		}
		r = r.Sub(view.Min)
		x, y := float64(r.Min.X), float64(r.Min.Y)
		w, h := float64(r.Dx()), float64(r.Dy())

		if img, ok := g.Image(id); ok {
			if img.Bounds().Size() != r.Size() {
				img = panorama.Thumbnail(img, r.Dx(), r.Dy())
			}
			dc.DrawImage(gg.ImageBufFromImage(toRGBA(img)), x, y)
		} else {
			dc.SetRGB(0.2, 0.2, 0.24)
			dc.DrawRectangle(x, y, w, h)
			_ = dc.Fill()
		}

		state, _ := g.State(id)
		c := stateColors[state]
		dc.SetRGB(c[0], c[1], c[2])
		dc.SetLineWidth(3)
		dc.DrawRectangle(x+1.5, y+1.5, w-3, h-3)
		_ = dc.Stroke()
	}
	return dc
}

func toRGBA(img image.Image) image.Image {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	return panorama.Thumbnail(img, img.Bounds().Dx(), img.Bounds().Dy())
}
