// Package grid wires the pool, the viewport tracker, the render adapter
// and one lifecycle controller per card into a scrolling grid of
// panorama cards. It is the composition root applications use.
package grid

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
	"github.com/gogpu/pano/lifecycle"
	"github.com/gogpu/pano/monitor"
	"github.com/gogpu/pano/panorama"
	"github.com/gogpu/pano/pool"
	"github.com/gogpu/pano/viewport"
)

var (
	// ErrClosed is returned by operations on a closed grid.
	ErrClosed = errors.New("grid: closed")

	// ErrDuplicateCard is returned when adding an id twice.
	ErrDuplicateCard = errors.New("grid: duplicate card")

	// ErrInvalidCard is returned for cards without an image or area.
	ErrInvalidCard = errors.New("grid: invalid card")
)

// DefaultViewport is the visible area when none is configured.
var DefaultViewport = image.Rect(0, 0, 1280, 720)

// Card is one panorama tile.
type Card struct {
	// ID identifies the card. A random UUID is assigned when empty.
	ID string

	ImageURL string

	// Bounds is the card's area in grid coordinates.
	Bounds image.Rectangle

	// Viewer overrides the grid's viewer configuration.
	Viewer *pano.ViewerConfig
}

type options struct {
	loader        panorama.Loader
	backend       panorama.Backend
	clock         clock.Clock
	view          image.Rectangle
	exec          lifecycle.Executor
	frameInterval time.Duration
	textureCap    int
	noObserver    bool
}

// Option configures a Grid.
type Option func(*options)

// WithLoader sets the image loader. The default serves synthetic://
// URLs and loads everything else over HTTP or from disk.
func WithLoader(l panorama.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithBackend sets the rendering backend. The default renders in
// software.
func WithBackend(b panorama.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithClock sets the clock for every component.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithViewport sets the initial visible area.
func WithViewport(r image.Rectangle) Option {
	return func(o *options) { o.view = r }
}

// WithExecutor sets how viewer constructions run.
func WithExecutor(e lifecycle.Executor) Option {
	return func(o *options) { o.exec = e }
}

// WithFrameInterval sets the render loop period of every viewer.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) { o.frameInterval = d }
}

// WithResolutionCap downscales panoramas wider than width pixels.
func WithResolutionCap(width int) Option {
	return func(o *options) { o.textureCap = width }
}

// WithoutObserver treats every card as visible, as when the host has no
// way to report visibility.
func WithoutObserver() Option {
	return func(o *options) { o.noObserver = true }
}

type entry struct {
	card Card
	slot *panorama.Slot
	ctrl *lifecycle.Controller
}

// Grid owns the pool and every card's controller.
type Grid struct {
	cfg      pano.Config
	opts     options
	pool     *pool.Manager
	tracker  *viewport.Tracker
	observer viewport.Observer
	adapter  *panorama.Adapter
	renderer lifecycle.Renderer
	monitor  *monitor.Collector

	mu     sync.Mutex
	cards  map[string]*entry
	order  []string
	closed bool
}

// New creates an empty grid.
func New(cfg pano.Config, opts ...Option) (*Grid, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		clock: clock.Real(),
		view:  DefaultViewport,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = panorama.SyntheticLoader(panorama.NewHTTPLoader(nil))
	}

	adapterOpts := []panorama.Option{panorama.WithClock(o.clock)}
	if o.frameInterval > 0 {
		adapterOpts = append(adapterOpts, panorama.WithFrameInterval(o.frameInterval))
	}
	if o.textureCap > 0 {
		adapterOpts = append(adapterOpts, panorama.WithResolutionCap(o.textureCap))
	}

	g := &Grid{
		cfg:     cfg,
		opts:    o,
		pool:    pool.New(cfg.Pool, pool.WithClock(o.clock)),
		tracker: viewport.New(o.view, viewport.WithMargin(cfg.Viewer.PreloadMarginPx), viewport.WithClock(o.clock)),
		adapter: panorama.New(o.loader, o.backend, adapterOpts...),
		cards:   make(map[string]*entry),
	}
	g.observer = g.tracker
	if o.noObserver {
		g.observer = viewport.Unavailable()
	}
	g.renderer = lifecycle.FromAdapter(g.adapter)
	g.monitor = monitor.New(g.pool,
		monitor.WithClock(o.clock),
		monitor.WithFrames(g.adapter),
		monitor.WithCards(g),
		monitor.WithMemStats(true),
	)

	pano.Logger().Info("grid: created", "max_concurrent", cfg.Pool.MaxConcurrent,
		"deferred_teardown", cfg.Pool.DeferredTeardown, "viewport", o.view)
	return g, nil
}

// Add mounts a card and returns its id.
func (g *Grid) Add(c Card) (string, error) {
	if c.ImageURL == "" {
		return "", fmt.Errorf("%w: missing image url", ErrInvalidCard)
	}
	if c.Bounds.Empty() {
		return "", fmt.Errorf("%w: empty bounds %v", ErrInvalidCard, c.Bounds)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	vc := g.cfg.Viewer
	if c.Viewer != nil {
		if err := c.Viewer.Validate(); err != nil {
			return "", err
		}
		vc = c.Viewer.Normalize()
	}

	slot := panorama.NewSlot(c.ID, c.Bounds.Dx(), c.Bounds.Dy())
	var ctrlOpts []lifecycle.Option
	ctrlOpts = append(ctrlOpts, lifecycle.WithClock(g.opts.clock))
	if g.opts.exec != nil {
		ctrlOpts = append(ctrlOpts, lifecycle.WithExecutor(g.opts.exec))
	}
	ctrl, err := lifecycle.New(lifecycle.Params{
		ID:        c.ID,
		ImageURL:  c.ImageURL,
		Container: slot,
		Viewer:    vc,
		Timing:    g.cfg.Pool,
		Pool:      g.pool,
		Renderer:  g.renderer,
	}, ctrlOpts...)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return "", ErrClosed
	}
	if _, ok := g.cards[c.ID]; ok {
		g.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateCard, c.ID)
	}
	g.cards[c.ID] = &entry{card: c, slot: slot, ctrl: ctrl}
	g.order = append(g.order, c.ID)
	g.mu.Unlock()

	if err := ctrl.Mount(g.observer, viewport.Rect(c.Bounds)); err != nil {
		g.Remove(c.ID)
		return "", err
	}
	return c.ID, nil
}

// Remove unmounts a card. It reports whether the card existed.
func (g *Grid) Remove(id string) bool {
	g.mu.Lock()
	e, ok := g.cards[id]
	if ok {
		delete(g.cards, id)
		for i, oid := range g.order {
			if oid == id {
				g.order = append(g.order[:i:i], g.order[i+1:]...)
				break
			}
		}
	}
	g.mu.Unlock()

	if ok {
		e.ctrl.Unmount()
	}
	return ok
}

// ScrollTo moves the viewport origin.
func (g *Grid) ScrollTo(x, y int) { g.tracker.ScrollTo(x, y) }

// ScrollBy moves the viewport.
func (g *Grid) ScrollBy(dx, dy int) { g.tracker.ScrollBy(dx, dy) }

// Resize changes the viewport size, keeping its origin.
func (g *Grid) Resize(width, height int) {
	origin := g.tracker.Viewport().Min
	g.tracker.SetViewport(image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width, height))})
}

// Viewport returns the visible area.
func (g *Grid) Viewport() image.Rectangle { return g.tracker.Viewport() }

// State returns a card's lifecycle state.
func (g *Grid) State(id string) (pano.State, bool) {
	e, ok := g.entry(id)
	if !ok {
		return 0, false
	}
	return e.ctrl.State(), true
}

// Bounds returns a card's area.
func (g *Grid) Bounds(id string) (image.Rectangle, bool) {
	e, ok := g.entry(id)
	if !ok {
		return image.Rectangle{}, false
	}
	return e.card.Bounds, true
}

// Image returns what a card currently shows: the live frame while a
// viewer is mounted, otherwise its placeholder thumbnail. It returns
// false when the card has neither.
func (g *Grid) Image(id string) (image.Image, bool) {
	e, ok := g.entry(id)
	if !ok {
		return nil, false
	}
	if snap, ok := e.slot.Surface().(panorama.Snapshotter); ok {
		if img := snap.Snapshot(); img != nil {
			return img, true
		}
	}
	return g.adapter.Placeholder(e.card.ImageURL)
}

// IDs returns card ids in insertion order.
func (g *Grid) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.order...)
}

// Cards returns the status of every card in insertion order.
func (g *Grid) Cards() []monitor.CardStatus {
	g.mu.Lock()
	entries := make([]*entry, 0, len(g.order))
	for _, id := range g.order {
		entries = append(entries, g.cards[id])
	}
	g.mu.Unlock()

	out := make([]monitor.CardStatus, len(entries))
	for i, e := range entries {
		out[i] = monitor.CardStatus{
			ID:       e.card.ID,
			State:    e.ctrl.State(),
			Queued:   e.ctrl.Queued(),
			Degraded: e.ctrl.Degraded(),
			Failures: e.ctrl.Failures(),
		}
	}
	return out
}

// Pool returns the grid's pool.
func (g *Grid) Pool() *pool.Manager { return g.pool }

// Adapter returns the grid's render adapter.
func (g *Grid) Adapter() *panorama.Adapter { return g.adapter }

// Monitor returns a collector over the grid.
func (g *Grid) Monitor() *monitor.Collector { return g.monitor }

// Close unmounts every card and evicts anything left in the pool. Close
// is idempotent.
func (g *Grid) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	entries := make([]*entry, 0, len(g.order))
	for _, id := range g.order {
		entries = append(entries, g.cards[id])
	}
	g.cards = make(map[string]*entry)
	g.order = nil
	g.mu.Unlock()

	for _, e := range entries {
		e.ctrl.Unmount()
	}
	g.pool.CleanupAll()

	pano.Logger().Info("grid: closed", "cards", len(entries))
	return nil
}

func (g *Grid) entry(id string) (*entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.cards[id]
	return e, ok
}

var (
	_ monitor.CardSource = (*Grid)(nil)
	_ monitor.Scroller   = (*Grid)(nil)
)
