// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
)

// DragDegreesPerPixel converts drag distance to rotation.
const DragDegreesPerPixel = 0.1

// ErrViewerDestroyed is returned by operations on a destroyed viewer.
var ErrViewerDestroyed = errors.New("panorama: viewer destroyed")

// Viewer is a live panorama bound to a container.
type Viewer struct {
	adapter   *Adapter
	url       string
	container Container

	mu             sync.Mutex
	tex            *texture
	geo            *geometry
	surface        Surface
	frame          *image.RGBA
	timer          *clock.Timer
	removeListener func()
	lastTick       time.Time

	yaw, pitch, hfov float64
	speed            float64 // deg/s
	showControls     bool
	dirty            bool
	destroyed        bool
	presentErrs      int
}

// URL returns the image the viewer shows.
func (v *Viewer) URL() string { return v.url }

// Orientation returns the current camera orientation.
func (v *Viewer) Orientation() pano.Orientation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return pano.Orientation{Pitch: v.pitch, Yaw: v.yaw, HFOV: v.hfov, AutoRotateSpeed: v.speed}
}

// Frame returns a copy of the last rendered frame.
func (v *Viewer) Frame() (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return nil, ErrViewerDestroyed
	}
	out := image.NewRGBA(v.frame.Bounds())
	copy(out.Pix, v.frame.Pix)
	return out, nil
}

// Destroyed reports whether Destroy has run.
func (v *Viewer) Destroyed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// Destroy stops the render loop, removes input listeners, releases the
// texture, geometry and surface, and clears the container. Later calls
// return nil.
func (v *Viewer) Destroy() error {
	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return nil
	}
	v.destroyed = true
	v.timer.Stop()
	v.timer = nil
	remove := v.removeListener
	v.removeListener = nil
	tex, geo, surface := v.tex, v.geo, v.surface
	v.tex, v.geo, v.surface = nil, nil, nil
	v.mu.Unlock()

	if remove != nil {
		remove()
	}
	tex.release()
	geo.release()

	var errs []error
	if err := surface.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing surface: %w", err))
	}
	v.container.Clear()
	v.adapter.live.Add(-1)

	if err := errors.Join(errs...); err != nil {
		logger().Warn("panorama: viewer teardown incomplete", "container", v.container.ID(), "err", err)
		return fmt.Errorf("%w: %w", pano.ErrTeardown, err)
	}
	logger().Debug("panorama: viewer destroyed", "container", v.container.ID())
	return nil
}

func (v *Viewer) handleInput(in Input) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return
	}
	switch in.Kind {
	case InputDrag:
		v.yaw = normalizeYaw(v.yaw - in.DX*DragDegreesPerPixel)
		v.pitch = clampPitch(v.pitch + in.DY*DragDegreesPerPixel)
		v.dirty = true
	case InputZoom:
		if !v.showControls {
			return
		}
		hfov := pano.ClampHFOV(v.hfov + in.Delta)
		if hfov == v.hfov {
			return
		}
		v.hfov = hfov
		v.geo = newGeometry(v.geo.width, v.geo.height, hfov)
		v.dirty = true
	}
}

func (v *Viewer) tick() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return
	}
	v.adapter.ticks.Add(1)
	now := v.adapter.opts.clock.Now()
	if v.speed != 0 {
		dt := now.Sub(v.lastTick).Seconds()
		v.yaw = normalizeYaw(v.yaw + v.speed*dt)
		v.dirty = true
	}
	v.lastTick = now
	v.renderLocked()
	v.scheduleLocked()
}

func (v *Viewer) scheduleLocked() {
	v.timer = v.adapter.opts.clock.AfterFunc(v.adapter.opts.frameInterval, v.tick)
}

func (v *Viewer) renderLocked() {
	if !v.dirty {
		return
	}
	v.dirty = false
	v.geo.project(v.frame, v.tex, v.yaw, v.pitch)
	hud := HUD{Show: v.showControls, Yaw: v.yaw, Pitch: v.pitch, HFOV: v.hfov}
	if err := v.surface.Present(v.frame, hud); err != nil {
		v.presentErrs++
		if v.presentErrs == 1 {
			logger().Warn("panorama: present failed", "container", v.container.ID(), "err", err)
		}
		return
	}
	v.adapter.frames.Add(1)
}

func normalizeYaw(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func clampPitch(deg float64) float64 {
	return max(-90, min(90, deg))
}
