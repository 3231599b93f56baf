package grid

import "image"

// Layout places n cards of size w x h in rows of cols, separated by gap
// pixels, starting at the origin.
func Layout(n, cols, w, h, gap int) []image.Rectangle {
	if n <= 0 || cols <= 0 || w <= 0 || h <= 0 {
		return nil
	}
	out := make([]image.Rectangle, n)
	for i := range out {
		x := (i % cols) * (w + gap)
		y := (i / cols) * (h + gap)
		out[i] = image.Rect(x, y, x+w, y+h)
	}
	return out
}
