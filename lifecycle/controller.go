package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
	"github.com/gogpu/pano/panorama"
	"github.com/gogpu/pano/pool"
	"github.com/gogpu/pano/viewport"
)

// maxBackoffFactor caps construction retry backoff at this multiple of
// the admission retry interval.
const maxBackoffFactor = 16

var (
	// ErrAlreadyMounted is returned by a second Mount.
	ErrAlreadyMounted = errors.New("lifecycle: already mounted")

	// ErrUnmounted is returned by Mount after Unmount.
	ErrUnmounted = errors.New("lifecycle: unmounted")

	// ErrInvalidParams is returned by New for incomplete parameters.
	ErrInvalidParams = errors.New("lifecycle: invalid params")
)

// Pool is the admission and eviction surface a controller needs.
// *pool.Manager implements it.
type Pool interface {
	TryAdmit(id string) error
	Release(id string)
	Register(id string, destroy pool.DestroyFunc) error
	Touch(id string) bool
	ScheduleDeferredEviction(id string, delay time.Duration) bool
	CancelDeferredEviction(id string) bool
	ForceEvict(id string) bool
	Subscribe(fn func()) (unsubscribe func())
}

// Handle is a live viewer.
type Handle interface {
	Destroy() error
}

// Request describes the viewer to build.
type Request struct {
	ID           string
	Container    panorama.Container
	URL          string
	Orientation  pano.Orientation
	ShowControls bool
}

// Renderer builds viewers. A failed Create must leave nothing mounted.
type Renderer interface {
	Create(ctx context.Context, req Request) (Handle, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req Request) (Handle, error)

// Create calls f.
func (f RendererFunc) Create(ctx context.Context, req Request) (Handle, error) {
	return f(ctx, req)
}

// FromAdapter returns a Renderer backed by a panorama.Adapter.
func FromAdapter(a *panorama.Adapter) Renderer {
	return RendererFunc(func(ctx context.Context, req Request) (Handle, error) {
		v, err := a.Create(ctx, req.Container, req.URL, req.Orientation, panorama.WithControls(req.ShowControls))
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Executor runs a construction. The default starts a goroutine.
type Executor func(func())

// Params are the fixed inputs of a controller.
type Params struct {
	ID        string
	ImageURL  string
	Container panorama.Container
	Viewer    pano.ViewerConfig
	Timing    pano.PoolConfig
	Pool      Pool
	Renderer  Renderer
}

type options struct {
	clock clock.Clock
	exec  Executor
}

// Option configures a Controller.
type Option func(*options)

// WithClock sets the clock used for admission retries.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithExecutor sets how constructions run.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.exec = e }
}

// Controller owns one viewer's lifecycle. It is safe for concurrent use.
type Controller struct {
	p      Params
	timing pano.PoolConfig
	clock  clock.Clock
	exec   Executor

	mu          sync.Mutex
	state       pano.State
	mounted     bool
	visible     bool
	degraded    bool
	queued      bool
	admitting   bool
	building    bool
	registering bool
	failures    int
	backoff     time.Duration
	cancelBuild context.CancelFunc

	handle Handle
	gen    uint64

	retry    *clock.Timer
	retrySeq uint64

	obs         viewport.Observer
	sub         viewport.Subscription
	observing   bool
	unsubscribe func()
}

// New creates an Idle controller.
func New(p Params, opts ...Option) (*Controller, error) {
	switch {
	case p.ID == "":
		return nil, fmt.Errorf("%w: empty id", ErrInvalidParams)
	case p.Container == nil:
		return nil, fmt.Errorf("%w: nil container for %q", ErrInvalidParams, p.ID)
	case p.Pool == nil:
		return nil, fmt.Errorf("%w: nil pool for %q", ErrInvalidParams, p.ID)
	case p.Renderer == nil:
		return nil, fmt.Errorf("%w: nil renderer for %q", ErrInvalidParams, p.ID)
	}

	o := options{
		clock: clock.Real(),
		exec:  func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	timing := p.Timing.Normalize()
	if timing.AdmissionRetry <= 0 {
		timing.AdmissionRetry = pano.DefaultAdmissionRetry
	}

	return &Controller{
		p:      p,
		timing: timing,
		clock:  o.clock,
		exec:   o.exec,
		state:  pano.Idle,
	}, nil
}

// ID returns the viewer id.
func (c *Controller) ID() string { return c.p.ID }

// State returns the current state.
func (c *Controller) State() pano.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Degraded reports whether the rendering backend is unavailable. A
// degraded controller stays Idle and its card keeps the placeholder.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Failures returns the number of failed constructions.
func (c *Controller) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Queued reports whether the controller is waiting after being denied a
// slot.
func (c *Controller) Queued() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == pano.AwaitingAdmission && c.queued
}

// Visible reports the last visibility the controller saw.
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Mount starts the controller. A lazy viewer observes el through obs; a
// nil obs degrades to always visible. A non-lazy viewer is treated as
// visible immediately and does not observe.
func (c *Controller) Mount(obs viewport.Observer, el viewport.Element) error {
	c.mu.Lock()
	switch {
	case c.state == pano.Destroyed:
		c.mu.Unlock()
		return ErrUnmounted
	case c.mounted:
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.mu.Unlock()

	unsubscribe := c.p.Pool.Subscribe(c.capacityFreed)
	c.mu.Lock()
	if c.state == pano.Destroyed {
		c.mu.Unlock()
		unsubscribe()
		return ErrUnmounted
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	if !c.p.Viewer.Lazy {
		c.HandleVisibility(viewport.Event{ID: c.p.ID, Intersecting: true, Time: c.clock.Now()})
		return nil
	}

	if obs == nil {
		obs = viewport.Unavailable()
	}
	sub := obs.Observe(c.p.ID, el, c.HandleVisibility)

	c.mu.Lock()
	if c.state == pano.Destroyed {
		c.mu.Unlock()
		obs.Unobserve(sub)
		return ErrUnmounted
	}
	c.obs, c.sub, c.observing = obs, sub, true
	c.mu.Unlock()
	return nil
}

// HandleVisibility applies a visibility transition.
func (c *Controller) HandleVisibility(ev viewport.Event) {
	c.mu.Lock()
	if c.state == pano.Destroyed {
		c.mu.Unlock()
		return
	}
	if !c.p.Viewer.Lazy {
		ev.Intersecting = true
	}
	c.visible = ev.Intersecting
	from := c.state

	var action func()
	switch c.state {
	case pano.Idle:
		if c.visible && !c.degraded {
			c.state = pano.AwaitingAdmission
			c.queued = false
			action = c.tryAdmit
		}
	case pano.AwaitingAdmission:
		if !c.visible && !c.building {
			c.stopRetryLocked()
			c.state = pano.Idle
			c.queued = false
		}
	case pano.Active:
		if !c.visible {
			c.state = pano.PendingTeardown
			if !c.registering {
				action = c.deferEviction
			}
		}
	case pano.PendingTeardown:
		if c.visible {
			c.state = pano.Active
			if !c.registering {
				action = c.resume
			}
		}
	}
	to := c.state
	c.mu.Unlock()

	if from != to {
		logger().Debug("lifecycle: transition", "id", c.p.ID, "from", from.String(), "to", to.String(), "visible", ev.Intersecting)
	}
	if action != nil {
		action()
	}
}

// Unmount tears everything down and moves to Destroyed. Once any
// in-flight construction returns, no registration, reservation or timer
// is left behind. Later calls are no-ops.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if c.state == pano.Destroyed {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = pano.Destroyed
	c.stopRetryLocked()
	cancel := c.cancelBuild
	// An in-flight construction keeps its reservation and handle until it
	// returns; construct cleans up on the Destroyed path.
	inFlight := c.building || c.registering
	obs, sub, observing := c.obs, c.sub, c.observing
	c.observing = false
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	h := c.handle
	c.mu.Unlock()

	if observing {
		obs.Unobserve(sub)
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if !c.p.Pool.ForceEvict(c.p.ID) && h != nil && !inFlight {
		if err := h.Destroy(); err != nil {
			logger().Warn("lifecycle: destroy on unmount failed", "id", c.p.ID, "err", err)
		}
	}
	if !inFlight {
		c.p.Pool.Release(c.p.ID)
	}

	logger().Debug("lifecycle: unmounted", "id", c.p.ID, "from", from.String())
}

// tryAdmit asks the pool for a slot and starts construction on success.
func (c *Controller) tryAdmit() {
	c.mu.Lock()
	if c.state != pano.AwaitingAdmission || c.building || c.admitting {
		c.mu.Unlock()
		return
	}
	c.admitting = true
	c.mu.Unlock()

	err := c.p.Pool.TryAdmit(c.p.ID)

	c.mu.Lock()
	c.admitting = false
	if c.state != pano.AwaitingAdmission {
		c.mu.Unlock()
		if err == nil {
			c.p.Pool.Release(c.p.ID)
		}
		return
	}
	if err != nil {
		c.queued = true
		c.armRetryLocked(c.timing.AdmissionRetry)
		c.mu.Unlock()
		logger().Debug("lifecycle: admission denied", "id", c.p.ID, "retry", c.timing.AdmissionRetry, "err", err)
		return
	}

	c.queued = false
	c.building = true
	c.stopRetryLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelBuild = cancel
	req := Request{
		ID:           c.p.ID,
		Container:    c.p.Container,
		URL:          c.p.ImageURL,
		Orientation:  c.p.Viewer.Orientation(),
		ShowControls: c.p.Viewer.ShowControls,
	}
	c.mu.Unlock()

	c.exec(func() { c.construct(ctx, cancel, req) })
}

func (c *Controller) construct(ctx context.Context, cancel context.CancelFunc, req Request) {
	h, err := c.p.Renderer.Create(ctx, req)
	cancel()

	c.mu.Lock()
	c.building = false
	c.cancelBuild = nil

	if err != nil {
		c.constructFailedLocked(err)
		return
	}

	if c.state == pano.Destroyed || !c.visible {
		if c.state != pano.Destroyed {
			c.state = pano.Idle
		}
		c.mu.Unlock()
		if err := h.Destroy(); err != nil {
			logger().Warn("lifecycle: discarding unwanted viewer failed", "id", c.p.ID, "err", err)
		}
		c.p.Pool.Release(c.p.ID)
		return
	}

	c.gen++
	gen := c.gen
	c.handle = h
	c.state = pano.Active
	c.backoff = 0
	c.registering = true
	c.mu.Unlock()

	if err := c.p.Pool.Register(c.p.ID, c.destroyFunc(h, gen)); err != nil {
		c.mu.Lock()
		c.registering = false
		if c.gen == gen {
			c.handle = nil
		}
		if c.state != pano.Destroyed {
			c.state = pano.Idle
		}
		c.mu.Unlock()
		_ = h.Destroy()
		c.p.Pool.Release(c.p.ID)
		logger().Warn("lifecycle: register failed", "id", c.p.ID, "err", err)
		return
	}

	c.mu.Lock()
	c.registering = false
	state := c.state
	c.mu.Unlock()

	logger().Info("lifecycle: viewer active", "id", c.p.ID, "url", c.p.ImageURL)

	// Visibility may have changed while registering.
	switch state {
	case pano.Destroyed:
		c.p.Pool.ForceEvict(c.p.ID)
	case pano.PendingTeardown:
		c.deferEviction()
	}
}

// constructFailedLocked handles a failed construction. It unlocks c.mu.
func (c *Controller) constructFailedLocked(err error) {
	if c.state == pano.Destroyed {
		c.mu.Unlock()
		c.p.Pool.Release(c.p.ID)
		return
	}

	c.failures++
	permanent := errors.Is(err, pano.ErrBackendUnavailable)
	var retry time.Duration
	switch {
	case permanent:
		c.degraded = true
		c.state = pano.Idle
	case c.visible:
		if c.backoff == 0 {
			c.backoff = c.timing.AdmissionRetry
		} else {
			c.backoff = min(2*c.backoff, maxBackoffFactor*c.timing.AdmissionRetry)
		}
		retry = c.backoff
		c.armRetryLocked(retry)
	default:
		c.state = pano.Idle
	}
	failures := c.failures
	c.mu.Unlock()

	c.p.Pool.Release(c.p.ID)

	if permanent {
		logger().Warn("lifecycle: rendering unavailable, keeping placeholder", "id", c.p.ID, "err", err)
		return
	}
	logger().Warn("lifecycle: construction failed", "id", c.p.ID, "url", c.p.ImageURL,
		"failures", failures, "retry", retry, "err", err)
}

// destroyFunc returns the pool handle for viewer h. It only resets the
// controller if h is still the current viewer.
func (c *Controller) destroyFunc(h Handle, gen uint64) pool.DestroyFunc {
	return func() error {
		c.mu.Lock()
		if c.gen == gen && c.handle != nil {
			c.handle = nil
			switch c.state {
			case pano.Active, pano.PendingTeardown:
				if c.visible && !c.degraded {
					// Evicted under pressure while on screen: wait for a slot.
					c.state = pano.AwaitingAdmission
					c.queued = true
					c.armRetryLocked(c.timing.AdmissionRetry)
				} else {
					c.state = pano.Idle
				}
			}
		}
		c.mu.Unlock()
		return h.Destroy()
	}
}

func (c *Controller) deferEviction() {
	if !c.p.Pool.ScheduleDeferredEviction(c.p.ID, c.timing.DeferredTeardown) {
		logger().Debug("lifecycle: nothing to defer", "id", c.p.ID)
	}
}

func (c *Controller) resume() {
	c.p.Pool.CancelDeferredEviction(c.p.ID)
	c.p.Pool.Touch(c.p.ID)
}

// capacityFreed runs when the pool frees a slot. Only controllers that
// were denied wake up; a failed construction waits out its backoff.
func (c *Controller) capacityFreed() {
	c.mu.Lock()
	queued := c.queued
	c.mu.Unlock()
	if queued {
		c.tryAdmit()
	}
}

func (c *Controller) armRetryLocked(d time.Duration) {
	c.stopRetryLocked()
	c.retrySeq++
	seq := c.retrySeq
	c.retry = c.clock.AfterFunc(d, func() { c.onRetry(seq) })
}

func (c *Controller) stopRetryLocked() {
	c.retry.Stop()
	c.retry = nil
	c.retrySeq++
}

func (c *Controller) onRetry(seq uint64) {
	c.mu.Lock()
	if seq != c.retrySeq {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.mu.Unlock()
	c.tryAdmit()
}
