// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/integration/ggcanvas"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/pano"
)

// ErrSurfaceClosed is returned when presenting to a closed surface.
var ErrSurfaceClosed = errors.New("panorama: surface closed")

// HUD is the overlay drawn over a frame when controls are shown.
type HUD struct {
	Show  bool
	Yaw   float64
	Pitch float64
	HFOV  float64
}

// Surface is the rendering context a viewer owns for its lifetime.
type Surface interface {
	// Present draws frame and the overlay.
	Present(frame *image.RGBA, hud HUD) error

	// Close releases the context. Close is idempotent.
	Close() error
}

// Backend creates surfaces.
type Backend interface {
	NewSurface(width, height int) (Surface, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(width, height int) (Surface, error)

// NewSurface calls f.
func (f BackendFunc) NewSurface(width, height int) (Surface, error) { return f(width, height) }

// SoftwareBackend renders into CPU gg contexts.
type SoftwareBackend struct{}

// NewSurface creates a gg.Context of the given size.
func (SoftwareBackend) NewSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: surface size %dx%d", pano.ErrConstruction, width, height)
	}
	return &softwareSurface{dc: gg.NewContext(width, height)}, nil
}

type softwareSurface struct {
	mu     sync.Mutex
	dc     *gg.Context
	closed bool
}

func (s *softwareSurface) Present(frame *image.RGBA, hud HUD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSurfaceClosed
	}
	return drawFrame(s.dc, frame, hud)
}

// Snapshot returns the last presented image, or nil once closed.
func (s *softwareSurface) Snapshot() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.dc.Image()
}

func (s *softwareSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dc.Close()
}

// Snapshotter is implemented by surfaces that can return their contents.
type Snapshotter interface {
	Snapshot() image.Image
}

// GPUBackend renders through ggcanvas into textures owned by a host
// window's GPU device.
type GPUBackend struct {
	provider gpucontext.DeviceProvider
}

// NewGPUBackend creates a backend over provider. A nil provider yields a
// backend that always reports pano.ErrBackendUnavailable.
func NewGPUBackend(provider gpucontext.DeviceProvider) *GPUBackend {
	return &GPUBackend{provider: provider}
}

// NewSurface creates a GPU canvas.
func (b *GPUBackend) NewSurface(width, height int) (Surface, error) {
	if b == nil || b.provider == nil {
		return nil, fmt.Errorf("%w: no device provider", pano.ErrBackendUnavailable)
	}
	if b.provider.SurfaceFormat() == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("%w: device provider has no surface format", pano.ErrBackendUnavailable)
	}
	canvas, err := ggcanvas.New(b.provider, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pano.ErrConstruction, err)
	}
	return &gpuSurface{canvas: canvas}, nil
}

type gpuSurface struct {
	mu     sync.Mutex
	canvas *ggcanvas.Canvas
}

func (s *gpuSurface) Present(frame *image.RGBA, hud HUD) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drawErr error
	if err := s.canvas.Draw(func(dc *gg.Context) {
		drawErr = drawFrame(dc, frame, hud)
	}); err != nil {
		if errors.Is(err, ggcanvas.ErrCanvasClosed) {
			return ErrSurfaceClosed
		}
		return err
	}
	if drawErr != nil {
		return drawErr
	}
	_, err := s.canvas.Flush()
	return err
}

// Texture returns the GPU texture backing the surface, or nil before the
// first Present.
func (s *gpuSurface) Texture() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Texture()
}

func (s *gpuSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Close()
}

// Unavailable returns a backend that never creates surfaces.
func Unavailable() Backend {
	return BackendFunc(func(int, int) (Surface, error) {
		return nil, fmt.Errorf("%w: rendering disabled", pano.ErrBackendUnavailable)
	})
}

// drawFrame copies frame into dc and draws the compass overlay.
func drawFrame(dc *gg.Context, frame *image.RGBA, hud HUD) error {
	if !hud.Show {
		dc.DrawImage(gg.ImageBufFromImage(frame), 0, 0)
		return nil
	}

	labeled := image.NewRGBA(frame.Bounds())
	copy(labeled.Pix, frame.Pix)
	drawLabel(labeled, fmt.Sprintf("yaw %.0f  pitch %.0f  fov %.0f", hud.Yaw, hud.Pitch, hud.HFOV))
	dc.DrawImage(gg.ImageBufFromImage(labeled), 0, 0)

	w, h := float64(dc.Width()), float64(dc.Height())
	r := math.Max(8, math.Min(w, h)*0.08)
	cx, cy := w-r-8, r+8

	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawCircle(cx, cy, r)
	if err := dc.Fill(); err != nil {
		return err
	}

	a := hud.Yaw * math.Pi / 180
	dc.SetRGBA(1, 0.3, 0.2, 0.95)
	dc.SetLineWidth(2)
	dc.DrawLine(cx, cy, cx+0.8*r*math.Sin(a), cy-0.8*r*math.Cos(a))
	return dc.Stroke()
}

func drawLabel(dst *image.RGBA, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, dst.Bounds().Dy()-6),
	}
	d.DrawString(text)
}

var (
	_ Backend     = SoftwareBackend{}
	_ Backend     = (*GPUBackend)(nil)
	_ Snapshotter = (*softwareSurface)(nil)
)
