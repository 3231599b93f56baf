// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/webp" // register WebP decoder
)

// Limits applied by HTTPLoader.
const (
	// DefaultMaxImageBytes caps a single panorama download.
	DefaultMaxImageBytes = 64 << 20

	// DefaultMaxImagePixels caps decoded dimensions: an 8192x4096
	// equirect, twice the default texture width.
	DefaultMaxImagePixels = 2 * DefaultMaxTextureWidth * DefaultMaxTextureWidth
)

// ErrImageTooLarge is returned when an image exceeds the loader's byte or
// pixel cap.
var ErrImageTooLarge = errors.New("panorama: image too large")

// Loader fetches and decodes an equirectangular image.
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string) (image.Image, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, url string) (image.Image, error) {
	return f(ctx, url)
}

// HTTPLoader loads images over http(s) or from the local filesystem
// (file:// URLs and bare paths). PNG, JPEG and WebP are supported.
type HTTPLoader struct {
	client    *http.Client
	maxBytes  int64
	maxPixels int64
}

// NewHTTPLoader creates a loader. A nil client gets a 30 second timeout.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPLoader{client: client, maxBytes: DefaultMaxImageBytes, maxPixels: DefaultMaxImagePixels}
}

// WithMaxBytes returns a copy of the loader with a different size cap.
func (l *HTTPLoader) WithMaxBytes(n int64) *HTTPLoader {
	c := *l
	c.maxBytes = n
	return &c
}

// WithMaxPixels returns a copy of the loader that rejects images with more
// than n pixels before decoding them.
func (l *HTTPLoader) WithMaxPixels(n int64) *HTTPLoader {
	c := *l
	c.maxPixels = n
	return &c
}

// Load fetches and decodes rawURL.
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("panorama: parsing image url: %w", err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("panorama: fetching %s: %w", rawURL, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("panorama: fetching %s: unexpected status %s", rawURL, resp.Status)
		}
		body = resp.Body
	case "file", "":
		path := u.Path
		if u.Scheme == "" {
			path = rawURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("panorama: opening %s: %w", path, err)
		}
		body = f
	default:
		return nil, fmt.Errorf("panorama: unsupported image scheme %q", u.Scheme)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("panorama: reading %s: %w", rawURL, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrImageTooLarge, rawURL, l.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Headers first: a small compressed file can declare a huge image.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("panorama: decoding %s: %w", rawURL, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > l.maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, over %d pixels", ErrImageTooLarge, rawURL, cfg.Width, cfg.Height, l.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("panorama: decoding %s: %w", rawURL, err)
	}
	b := img.Bounds()
	if b.Dx() != 2*b.Dy() {
		// Not fatal: the projection stretches any aspect ratio.
		logger().Debug("panorama: image is not 2:1", "url", rawURL, "format", format, "size", b.Size())
	}
	return img, nil
}

// SyntheticScheme prefixes URLs served by SyntheticLoader.
const SyntheticScheme = "synthetic://"

// SyntheticLoader serves synthetic://<seed> URLs with generated panoramas
// and delegates everything else to next. A nil next rejects other URLs.
func SyntheticLoader(next Loader) Loader {
	return LoaderFunc(func(ctx context.Context, rawURL string) (image.Image, error) {
		if seed, ok := strings.CutPrefix(rawURL, SyntheticScheme); ok {
			n, err := strconv.Atoi(seed)
			if err != nil {
				return nil, fmt.Errorf("panorama: bad synthetic seed %q", seed)
			}
			return Synthetic(1024, 512, n), nil
		}
		if next == nil {
			return nil, fmt.Errorf("panorama: no loader for %s", rawURL)
		}
		return next.Load(ctx, rawURL)
	})
}

// Synthetic generates an equirectangular test pattern: hue follows
// longitude (shifted by seed), brightness follows latitude, with grid
// lines every 30 degrees.
func Synthetic(width, height, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	shift := float64(seed%12) * 30
	for y := 0; y < height; y++ {
		lat := 90 - 180*(float64(y)+0.5)/float64(height)
		light := 0.35 + 0.4*math.Cos(lat*math.Pi/180)
		for x := 0; x < width; x++ {
			lon := 360*(float64(x)+0.5)/float64(width) - 180
			c := hsl(math.Mod(lon+180+shift, 360), 0.65, light)
			if nearGrid(lon, 30, 0.6) || nearGrid(lat, 30, 0.6) {
				c = color.RGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func nearGrid(deg, step, tol float64) bool {
	m := math.Mod(math.Abs(deg), step)
	return m < tol || step-m < tol
}

func hsl(h, s, l float64) color.RGBA {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := l - c/2
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}
