// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/cache"
	"github.com/gogpu/pano/internal/clock"
)

// Defaults for adapter options.
const (
	DefaultFrameInterval = time.Second / 60
	ThumbnailWidth       = 256
	ThumbnailHeight      = 128
	placeholderCapacity  = 8 // per shard
)

// ErrNilContainer is returned by Create without a container.
var ErrNilContainer = errors.New("panorama: nil container")

func logger() *slog.Logger { return pano.Logger() }

type options struct {
	clock           clock.Clock
	frameInterval   time.Duration
	maxTextureWidth int
}

// Option configures an Adapter.
type Option func(*options)

// WithClock sets the clock driving render loops.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithFrameInterval sets the render loop period.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.frameInterval = d
		}
	}
}

// WithResolutionCap downscales textures wider than width pixels.
func WithResolutionCap(width int) Option {
	return func(o *options) { o.maxTextureWidth = width }
}

// Adapter creates viewers. It keeps a thumbnail of every image it has
// loaded so hosts can show a placeholder while a viewer is not active.
type Adapter struct {
	loader  Loader
	backend Backend
	opts    options

	thumbs *cache.Sharded[string, *image.RGBA]

	loads  atomic.Uint64
	frames atomic.Uint64
	ticks  atomic.Uint64
	live   atomic.Int64
}

// New creates an Adapter. A nil backend renders in software.
func New(loader Loader, backend Backend, opts ...Option) *Adapter {
	o := options{
		clock:           clock.Real(),
		frameInterval:   DefaultFrameInterval,
		maxTextureWidth: DefaultMaxTextureWidth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if backend == nil {
		backend = SoftwareBackend{}
	}
	return &Adapter{
		loader:  loader,
		backend: backend,
		opts:    o,
		thumbs:  cache.New[string, *image.RGBA](placeholderCapacity, cache.StringHasher),
	}
}

// ViewerOption configures a single viewer.
type ViewerOption func(*Viewer)

// WithControls enables the overlay and zoom input.
func WithControls(show bool) ViewerOption {
	return func(v *Viewer) { v.showControls = show }
}

// Create loads url and builds a viewer in c. The image load honors ctx;
// if ctx is done when the load returns, nothing is built and the error
// wraps ctx.Err(). pano.ErrBackendUnavailable is returned unwrapped from
// ErrConstruction so callers can tell a missing backend from a failure.
func (a *Adapter) Create(ctx context.Context, c Container, url string, o pano.Orientation, opts ...ViewerOption) (*Viewer, error) {
	if c == nil {
		return nil, ErrNilContainer
	}
	w, h := c.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: container %s has size %dx%d", pano.ErrConstruction, c.ID(), w, h)
	}

	a.loads.Add(1)
	img, err := a.loader.Load(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pano.ErrConstruction, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", pano.ErrConstruction, err)
	}

	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image %s", pano.ErrConstruction, url)
	}

	a.thumbs.GetOrCreate(url, func() *image.RGBA {
		return Thumbnail(img, ThumbnailWidth, ThumbnailHeight)
	})

	tex := newTexture(img, a.opts.maxTextureWidth)
	hfov := pano.ClampHFOV(o.HFOV)
	geo := newGeometry(w, h, hfov)

	surface, err := a.backend.NewSurface(w, h)
	if err != nil {
		tex.release()
		geo.release()
		if errors.Is(err, pano.ErrBackendUnavailable) || errors.Is(err, pano.ErrConstruction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", pano.ErrConstruction, err)
	}

	v := &Viewer{
		adapter:   a,
		url:       url,
		container: c,
		tex:       tex,
		geo:       geo,
		surface:   surface,
		frame:     image.NewRGBA(image.Rect(0, 0, w, h)),
		yaw:       normalizeYaw(o.Yaw),
		pitch:     clampPitch(o.Pitch),
		hfov:      hfov,
		speed:     o.AutoRotateSpeed,
		dirty:     true,
	}
	for _, opt := range opts {
		opt(v)
	}

	c.Mount(surface)
	v.removeListener = c.Listen(v.handleInput)
	a.live.Add(1)

	v.mu.Lock()
	v.lastTick = a.opts.clock.Now()
	v.renderLocked()
	v.scheduleLocked()
	v.mu.Unlock()

	logger().Info("panorama: viewer created", "container", c.ID(), "url", url, "size", image.Pt(w, h))
	return v, nil
}

// Placeholder returns the thumbnail of a previously loaded url.
func (a *Adapter) Placeholder(url string) (image.Image, bool) {
	thumb, ok := a.thumbs.Get(url)
	if !ok {
		return nil, false
	}
	return thumb, true
}

// Loads returns how many image loads Create has started.
func (a *Adapter) Loads() uint64 { return a.loads.Load() }

// Frames returns the number of frames presented by all viewers.
func (a *Adapter) Frames() uint64 { return a.frames.Load() }

// Ticks returns the number of render loop iterations across all viewers,
// including those that had nothing new to present.
func (a *Adapter) Ticks() uint64 { return a.ticks.Load() }

// Live returns the number of viewers not yet destroyed.
func (a *Adapter) Live() int { return int(a.live.Load()) }
