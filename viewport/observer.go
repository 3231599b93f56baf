// Package viewport reports when card elements enter and leave a scrollable
// viewport.
//
// A Tracker compares each observed element's layout rectangle with the
// viewport expanded by a pre-load margin, and fires exactly one event per
// transition. It does not debounce; consumers decide how to react to rapid
// enter/exit sequences.
//
// When no viewport geometry is available, Unavailable returns an Observer
// that reports every element as visible, so viewers load eagerly instead of
// never loading.
package viewport

import (
	"image"
	"sync"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
)

// Element is anything with a layout rectangle in document coordinates.
type Element interface {
	Bounds() image.Rectangle
}

// Rect adapts a fixed rectangle to Element.
type Rect image.Rectangle

// Bounds returns the rectangle.
func (r Rect) Bounds() image.Rectangle { return image.Rectangle(r) }

// Event is a single visibility transition.
type Event struct {
	ID           string
	Intersecting bool
	Time         time.Time
}

// Callback receives visibility transitions.
type Callback func(Event)

// Subscription identifies one Observe call.
type Subscription struct {
	id uint64
}

// Observer is the visibility contract consumed by viewer controllers.
type Observer interface {
	// Observe starts tracking el and returns a handle for Unobserve.
	Observe(id string, el Element, fn Callback) Subscription

	// Unobserve stops tracking. It is idempotent. A callback already being
	// delivered on another goroutine may still complete.
	Unobserve(Subscription)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMargin sets the pre-load margin in pixels. Defaults to 50.
func WithMargin(px int) Option {
	return func(t *Tracker) {
		if px >= 0 {
			t.margin = px
		}
	}
}

// WithClock sets the clock used to timestamp events.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

type observation struct {
	sub          Subscription
	id           string
	el           Element
	fn           Callback
	intersecting bool
}

// Tracker is the geometric intersection primitive. It is safe for
// concurrent use; callbacks run outside its lock in subscription order.
type Tracker struct {
	margin int
	clock  clock.Clock

	mu       sync.Mutex
	view     image.Rectangle
	seq      uint64
	obs      map[uint64]*observation
	order    []uint64
	queue    []pendingEvent
	draining bool
}

// New creates a Tracker for the given viewport rectangle.
func New(view image.Rectangle, opts ...Option) *Tracker {
	t := &Tracker{
		margin: pano.DefaultPreloadMarginPx,
		clock:  clock.Real(),
		view:   view,
		obs:    make(map[uint64]*observation),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Margin returns the pre-load margin in pixels.
func (t *Tracker) Margin() int {
	return t.margin
}

// Viewport returns the current viewport rectangle.
func (t *Tracker) Viewport() image.Rectangle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Observe starts tracking el. If el already intersects the expanded
// viewport, fn receives an entering event; unless another goroutine is
// delivering events at that moment, this happens before Observe returns.
func (t *Tracker) Observe(id string, el Element, fn Callback) Subscription {
	t.mu.Lock()
	t.seq++
	sub := Subscription{id: t.seq}
	t.obs[sub.id] = &observation{sub: sub, id: id, el: el, fn: fn}
	t.order = append(t.order, sub.id)
	t.mu.Unlock()

	t.evaluate()
	return sub
}

// Unobserve stops tracking the subscription. Queued events for it are
// dropped.
func (t *Tracker) Unobserve(sub Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.obs[sub.id]; !ok {
		return
	}
	delete(t.obs, sub.id)
	for i, id := range t.order {
		if id == sub.id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
}

// SetViewport moves or resizes the viewport and fires any resulting
// transitions.
func (t *Tracker) SetViewport(view image.Rectangle) {
	t.mu.Lock()
	t.view = view
	t.mu.Unlock()
	t.evaluate()
}

// ScrollTo moves the viewport origin, keeping its size.
func (t *Tracker) ScrollTo(x, y int) {
	t.mu.Lock()
	t.view = t.view.Sub(t.view.Min).Add(image.Pt(x, y))
	t.mu.Unlock()
	t.evaluate()
}

// ScrollBy moves the viewport by a delta.
func (t *Tracker) ScrollBy(dx, dy int) {
	t.mu.Lock()
	t.view = t.view.Add(image.Pt(dx, dy))
	t.mu.Unlock()
	t.evaluate()
}

// Refresh re-evaluates every observation, for use after element layout
// changes.
func (t *Tracker) Refresh() {
	t.evaluate()
}

// Intersects reports whether r overlaps the viewport expanded by the margin.
func (t *Tracker) Intersects(r image.Rectangle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.intersectsLocked(r)
}

func (t *Tracker) intersectsLocked(r image.Rectangle) bool {
	root := t.view.Inset(-t.margin)
	return r.Overlaps(root)
}

type pendingEvent struct {
	sub Subscription
	fn  Callback
	ev  Event
}

// evaluate computes transitions under the lock and queues them. The first
// caller to find the queue idle delivers every queued event, outside the
// lock and in order; re-entrant or concurrent callers only enqueue.
func (t *Tracker) evaluate() {
	t.mu.Lock()
	now := t.clock.Now()
	for _, id := range t.order {
		o := t.obs[id]
		in := t.intersectsLocked(o.el.Bounds())
		if in == o.intersecting {
			continue
		}
		o.intersecting = in
		t.queue = append(t.queue, pendingEvent{
			sub: o.sub,
			fn:  o.fn,
			ev:  Event{ID: o.id, Intersecting: in, Time: now},
		})
	}
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true

	for len(t.queue) > 0 {
		p := t.queue[0]
		t.queue = t.queue[1:]
		if _, live := t.obs[p.sub.id]; !live {
			continue
		}
		t.mu.Unlock()
		p.fn(p.ev)
		t.mu.Lock()
	}
	t.draining = false
	t.mu.Unlock()
}

// AlwaysVisible is the degraded Observer used when no viewport geometry
// exists. Every element is reported visible once and never leaves.
type AlwaysVisible struct {
	clock clock.Clock
}

// Unavailable returns the degraded Observer and logs the fallback.
func Unavailable() *AlwaysVisible {
	pano.Logger().Warn("viewport: visibility tracking unavailable, treating all viewers as visible")
	return &AlwaysVisible{clock: clock.Real()}
}

// Observe fires an entering event synchronously.
func (a *AlwaysVisible) Observe(id string, _ Element, fn Callback) Subscription {
	now := time.Now()
	if a.clock != nil {
		now = a.clock.Now()
	}
	fn(Event{ID: id, Intersecting: true, Time: now})
	return Subscription{}
}

// Unobserve is a no-op.
func (a *AlwaysVisible) Unobserve(Subscription) {}

var (
	_ Observer = (*Tracker)(nil)
	_ Observer = (*AlwaysVisible)(nil)
)
