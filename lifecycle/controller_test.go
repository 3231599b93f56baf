package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
	"github.com/gogpu/pano/panorama"
	"github.com/gogpu/pano/pool"
	"github.com/gogpu/pano/viewport"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeRenderer counts constructions and live handles.
type fakeRenderer struct {
	mu      sync.Mutex
	creates map[string]int
	live    int
	errs    []error
	handles []*fakeHandle
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{creates: make(map[string]int)}
}

func (r *fakeRenderer) Create(ctx context.Context, req Request) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates[req.ID]++
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", pano.ErrConstruction, err)
	}
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	h := &fakeHandle{r: r, id: req.ID}
	r.handles = append(r.handles, h)
	r.live++
	return h, nil
}

func (r *fakeRenderer) failNext(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, errs...)
}

func (r *fakeRenderer) createCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates[id]
}

func (r *fakeRenderer) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *fakeRenderer) destroyCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.handles {
		if h.id == id {
			n += h.destroys
		}
	}
	return n
}

type fakeHandle struct {
	r        *fakeRenderer
	id       string
	destroys int
}

func (h *fakeHandle) Destroy() error {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.destroys++
	if h.destroys == 1 {
		h.r.live--
	}
	return nil
}

type harness struct {
	t        *testing.T
	clock    *clock.FakeClock
	pool     *pool.Manager
	tracker  *viewport.Tracker
	renderer *fakeRenderer
	exec     Executor
	timing   pano.PoolConfig
	ctrls    map[string]*Controller
}

func newHarness(t *testing.T, max int) *harness {
	t.Helper()
	c := clock.Fake(epoch)
	cfg := pano.DefaultPoolConfig()
	cfg.MaxConcurrent = max
	return &harness{
		t:        t,
		clock:    c,
		pool:     pool.New(cfg, pool.WithClock(c)),
		tracker:  viewport.New(image.Rect(0, 0, 800, 600), viewport.WithClock(c)),
		renderer: newFakeRenderer(),
		exec:     func(f func()) { f() },
		timing:   cfg,
		ctrls:    make(map[string]*Controller),
	}
}

// card returns the bounds of a 300x200 card at y.
func card(y int) viewport.Rect {
	return viewport.Rect(image.Rect(0, y, 300, y+200))
}

func (h *harness) mount(id string, y int, lazy bool) *Controller {
	h.t.Helper()
	vc := pano.DefaultViewerConfig()
	vc.Lazy = lazy
	ctrl, err := New(Params{
		ID:        id,
		ImageURL:  "synthetic://" + id,
		Container: panorama.NewSlot(id, 300, 200),
		Viewer:    vc,
		Timing:    h.timing,
		Pool:      h.pool,
		Renderer:  h.renderer,
	}, WithClock(h.clock), WithExecutor(h.exec))
	if err != nil {
		h.t.Fatalf("New(%q) error = %v", id, err)
	}
	if err := ctrl.Mount(h.tracker, card(y)); err != nil {
		h.t.Fatalf("Mount(%q) error = %v", id, err)
	}
	h.ctrls[id] = ctrl
	return ctrl
}

func (h *harness) wantState(id string, want pano.State) {
	h.t.Helper()
	if got := h.ctrls[id].State(); got != want {
		h.t.Errorf("%s state = %v, want %v", id, got, want)
	}
}

// checkBudget verifies that pool, controllers and renderer agree.
func (h *harness) checkBudget() {
	h.t.Helper()
	live := 0
	for _, c := range h.ctrls {
		if c.State().Live() {
			live++
		}
	}
	active := h.pool.ActiveCount()
	if active > h.pool.MaxConcurrent() {
		h.t.Fatalf("ActiveCount() = %d exceeds max %d", active, h.pool.MaxConcurrent())
	}
	if live != active {
		h.t.Fatalf("%d controllers live, pool has %d registrations", live, active)
	}
	if got := h.renderer.liveCount(); got != active {
		h.t.Fatalf("%d handles live, pool has %d registrations", got, active)
	}
}

func TestNewRejectsIncompleteParams(t *testing.T) {
	h := newHarness(t, 2)
	full := Params{
		ID:        "a",
		Container: panorama.NewSlot("a", 1, 1),
		Pool:      h.pool,
		Renderer:  h.renderer,
	}
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no id", func(p *Params) { p.ID = "" }},
		{"no container", func(p *Params) { p.Container = nil }},
		{"no pool", func(p *Params) { p.Pool = nil }},
		{"no renderer", func(p *Params) { p.Renderer = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := full
			tt.mutate(&p)
			if _, err := New(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("New() error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestLazyViewerWaitsForVisibility(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 2000, true)

	h.wantState("a", pano.Idle)
	if n := h.renderer.createCount("a"); n != 0 {
		t.Fatalf("created %d viewers before visible", n)
	}

	h.tracker.ScrollTo(0, 1900)
	h.wantState("a", pano.Active)
	if h.pool.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", h.pool.ActiveCount())
	}
	h.checkBudget()
}

func TestEagerViewerBuildsOnMount(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 5000, false)

	h.wantState("a", pano.Active)

	// Eager viewers do not observe, so scrolling does nothing.
	h.tracker.ScrollTo(0, 10000)
	h.clock.Advance(10 * time.Second)
	h.wantState("a", pano.Active)
	h.checkBudget()
}

func TestDeferredTeardownAfterLeaving(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 0, true)
	h.wantState("a", pano.Active)

	h.tracker.ScrollTo(0, 1000)
	h.wantState("a", pano.PendingTeardown)
	if h.pool.PendingEvictions() != 1 {
		t.Fatalf("PendingEvictions() = %d, want 1", h.pool.PendingEvictions())
	}

	h.clock.Advance(2999 * time.Millisecond)
	h.wantState("a", pano.PendingTeardown)
	if n := h.renderer.destroyCount("a"); n != 0 {
		t.Fatalf("destroyed %d times before the deadline", n)
	}

	h.clock.Advance(time.Millisecond)
	h.wantState("a", pano.Idle)
	if n := h.renderer.destroyCount("a"); n != 1 {
		t.Errorf("destroyed %d times, want 1", n)
	}
	if h.pool.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", h.pool.ActiveCount())
	}

	// Coming back builds a fresh viewer.
	h.tracker.ScrollTo(0, 0)
	h.wantState("a", pano.Active)
	if n := h.renderer.createCount("a"); n != 2 {
		t.Errorf("created %d viewers, want 2", n)
	}
	h.checkBudget()
}

func TestZeroDeferredTeardownEvictsOnExit(t *testing.T) {
	h := newHarness(t, 2)
	h.timing.DeferredTeardown = 0
	h.mount("a", 0, true)
	h.wantState("a", pano.Active)

	h.tracker.ScrollTo(0, 1000)
	h.wantState("a", pano.Idle)
	if n := h.renderer.destroyCount("a"); n != 1 {
		t.Errorf("destroyed %d times, want 1", n)
	}
	if h.pool.PendingEvictions() != 0 || h.pool.ActiveCount() != 0 {
		t.Errorf("pool still holds a (pending %d, active %d)", h.pool.PendingEvictions(), h.pool.ActiveCount())
	}
	h.checkBudget()
}

func TestReentryCancelsTeardown(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 0, true)

	h.tracker.ScrollTo(0, 1000)
	h.clock.Advance(1000 * time.Millisecond)
	h.tracker.ScrollTo(0, 0)

	h.wantState("a", pano.Active)
	if h.pool.PendingEvictions() != 0 {
		t.Errorf("PendingEvictions() = %d, want 0", h.pool.PendingEvictions())
	}

	h.clock.Advance(10 * time.Second)
	h.wantState("a", pano.Active)
	if n := h.renderer.destroyCount("a"); n != 0 {
		t.Errorf("destroyed %d times, want 0", n)
	}
	if n := h.renderer.createCount("a"); n != 1 {
		t.Errorf("created %d viewers, want 1 (no reconstruction)", n)
	}
	if h.pool.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", h.pool.ActiveCount())
	}
}

func TestThreeLazyViewersWithTwoSlots(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 0, true)
	h.mount("b", 250, true)
	h.mount("c", 500, true)

	h.wantState("a", pano.Active)
	h.wantState("b", pano.Active)
	h.wantState("c", pano.AwaitingAdmission)
	if !h.ctrls["c"].Queued() {
		t.Error("c is not queued")
	}
	h.checkBudget()

	denied := h.pool.Stats().Denials
	h.clock.Advance(1500 * time.Millisecond)
	h.wantState("c", pano.AwaitingAdmission)
	if got := h.pool.Stats().Denials - denied; got != 3 {
		t.Errorf("denials while waiting 1500ms = %d, want 3 (every 500ms)", got)
	}

	// a leaves; c is still visible.
	h.tracker.ScrollTo(0, 300)
	h.wantState("a", pano.PendingTeardown)
	h.wantState("c", pano.AwaitingAdmission)

	h.clock.Advance(2999 * time.Millisecond)
	h.wantState("c", pano.AwaitingAdmission)
	h.checkBudget()

	h.clock.Advance(time.Millisecond)
	h.wantState("a", pano.Idle)
	h.wantState("b", pano.Active)
	h.wantState("c", pano.Active)
	h.checkBudget()
}

func TestQuickScrollKeepsViewer(t *testing.T) {
	h := newHarness(t, 2)
	h.mount("a", 0, true)

	for range 5 {
		h.tracker.ScrollTo(0, 1000)
		h.clock.Advance(400 * time.Millisecond)
		h.tracker.ScrollTo(0, 0)
		h.clock.Advance(400 * time.Millisecond)
		h.wantState("a", pano.Active)
	}

	if n := h.renderer.createCount("a"); n != 1 {
		t.Errorf("created %d viewers, want 1", n)
	}
	if n := h.ctrls["a"].Failures(); n != 0 {
		t.Errorf("Failures() = %d, want 0", n)
	}
}

func TestUnmountAwaitingAdmissionIsNetZero(t *testing.T) {
	h := newHarness(t, 1)
	h.mount("a", 0, true)
	h.mount("b", 250, true)
	h.wantState("b", pano.AwaitingAdmission)

	h.ctrls["b"].Unmount()
	h.wantState("b", pano.Destroyed)
	if h.pool.Contains("b") || h.pool.Reserved("b") {
		t.Error("b left pool bookkeeping behind")
	}
	if n := h.clock.PendingCount(); n != 0 {
		t.Errorf("PendingCount() = %d, want 0", n)
	}
	if n := h.renderer.createCount("b"); n != 0 {
		t.Errorf("b was constructed %d times", n)
	}
	delete(h.ctrls, "b")
	h.checkBudget()
}

func TestUnmountFromEveryState(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		state   pano.State
		created bool
	}{
		{"idle", func(h *harness) { h.mount("x", 2000, true) }, pano.Idle, false},
		{"awaiting", func(h *harness) {
			h.mount("a", 0, true)
			h.mount("x", 250, true)
		}, pano.AwaitingAdmission, false},
		{"active", func(h *harness) { h.mount("x", 0, true) }, pano.Active, true},
		{"pending teardown", func(h *harness) {
			h.mount("x", 0, true)
			h.tracker.ScrollTo(0, 1000)
		}, pano.PendingTeardown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1)
			tt.setup(h)
			h.wantState("x", tt.state)

			x := h.ctrls["x"]
			x.Unmount()
			x.Unmount()

			h.wantState("x", pano.Destroyed)
			if h.pool.Contains("x") || h.pool.Reserved("x") {
				t.Error("pool still tracks x")
			}
			if h.pool.PendingEvictions() != 0 {
				t.Errorf("PendingEvictions() = %d, want 0", h.pool.PendingEvictions())
			}
			want := 0
			if tt.created {
				want = 1
			}
			if n := h.renderer.destroyCount("x"); n != want {
				t.Errorf("x destroyed %d times, want %d", n, want)
			}

			// Events after unmount are ignored.
			h.tracker.ScrollTo(0, 0)
			x.HandleVisibility(viewport.Event{ID: "x", Intersecting: true})
			h.clock.Advance(10 * time.Second)
			h.wantState("x", pano.Destroyed)
			if n := h.renderer.createCount("x"); n > 1 {
				t.Errorf("x constructed %d times after unmount", n)
			}
		})
	}
}

func TestMountErrors(t *testing.T) {
	h := newHarness(t, 2)
	c := h.mount("a", 0, true)
	if err := c.Mount(h.tracker, card(0)); !errors.Is(err, ErrAlreadyMounted) {
		t.Errorf("second Mount() error = %v, want ErrAlreadyMounted", err)
	}
	c.Unmount()
	if err := c.Mount(h.tracker, card(0)); !errors.Is(err, ErrUnmounted) {
		t.Errorf("Mount() after Unmount error = %v, want ErrUnmounted", err)
	}
}

func TestMountWithoutObserverIsAlwaysVisible(t *testing.T) {
	h := newHarness(t, 2)
	c, err := New(Params{
		ID:        "a",
		Container: panorama.NewSlot("a", 10, 10),
		Viewer:    pano.DefaultViewerConfig(),
		Pool:      h.pool,
		Renderer:  h.renderer,
	}, WithClock(h.clock), WithExecutor(h.exec))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Mount(nil, card(99999)); err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != pano.Active {
		t.Errorf("State() = %v, want Active", got)
	}
}

func TestConstructionFailureBacksOff(t *testing.T) {
	h := newHarness(t, 2)
	boom := fmt.Errorf("%w: decode failed", pano.ErrConstruction)
	h.renderer.failNext(boom, boom, boom)

	c := h.mount("a", 0, true)
	h.wantState("a", pano.AwaitingAdmission)
	if c.Failures() != 1 {
		t.Fatalf("Failures() = %d, want 1", c.Failures())
	}
	if h.pool.Reserved("a") || h.pool.ActiveCount() != 0 {
		t.Fatal("failed construction kept a slot")
	}

	steps := []struct {
		advance  time.Duration
		failures int
	}{
		{499 * time.Millisecond, 1},
		{time.Millisecond, 2},
		{999 * time.Millisecond, 2},
		{time.Millisecond, 3},
		{1999 * time.Millisecond, 3},
		{time.Millisecond, 3}, // succeeds at 3500ms
	}
	for i, s := range steps {
		h.clock.Advance(s.advance)
		if got := c.Failures(); got != s.failures {
			t.Fatalf("step %d: Failures() = %d, want %d", i, got, s.failures)
		}
	}
	h.wantState("a", pano.Active)
	if n := h.renderer.createCount("a"); n != 4 {
		t.Errorf("created %d times, want 4", n)
	}
	h.checkBudget()
}

func TestConstructionBackoffIsCapped(t *testing.T) {
	h := newHarness(t, 2)
	boom := errors.New("network down")
	for range 10 {
		h.renderer.failNext(boom)
	}
	c := h.mount("a", 0, true)

	// 500, 1000, 2000, 4000, 8000, 8000 ...
	for _, d := range []time.Duration{500, 1000, 2000, 4000, 8000, 8000, 8000} {
		before := c.Failures()
		h.clock.Advance(d*time.Millisecond - time.Millisecond)
		if c.Failures() != before {
			t.Fatalf("retried before %dms", d)
		}
		h.clock.Advance(time.Millisecond)
		if c.Failures() != before+1 {
			t.Fatalf("did not retry after %dms", d)
		}
	}
}

func TestFailureWhileHiddenGoesIdle(t *testing.T) {
	h := newHarness(t, 2)
	var pending []func()
	h.exec = func(f func()) { pending = append(pending, f) }
	h.renderer.failNext(errors.New("decode"))

	h.mount("a", 0, true)
	h.tracker.ScrollTo(0, 1000)
	pending[0]()

	h.wantState("a", pano.Idle)
	if n := h.clock.PendingCount(); n != 0 {
		t.Errorf("PendingCount() = %d, want no retry", n)
	}
}

func TestBackendUnavailableDegrades(t *testing.T) {
	h := newHarness(t, 2)
	h.renderer.failNext(fmt.Errorf("%w: no device", pano.ErrBackendUnavailable))

	c := h.mount("a", 0, true)
	h.wantState("a", pano.Idle)
	if !c.Degraded() {
		t.Fatal("Degraded() = false")
	}

	h.tracker.ScrollTo(0, 1000)
	h.tracker.ScrollTo(0, 0)
	h.clock.Advance(time.Minute)
	h.wantState("a", pano.Idle)
	if n := h.renderer.createCount("a"); n != 1 {
		t.Errorf("created %d times, want 1", n)
	}
	if h.pool.Reserved("a") || h.clock.PendingCount() != 0 {
		t.Error("degraded controller holds pool or timer state")
	}
}

func TestVisibilityLostDuringConstruction(t *testing.T) {
	t.Run("discarded", func(t *testing.T) {
		h := newHarness(t, 2)
		var pending []func()
		h.exec = func(f func()) { pending = append(pending, f) }

		h.mount("a", 0, true)
		if !h.pool.Reserved("a") {
			t.Fatal("construction does not hold a reservation")
		}
		h.tracker.ScrollTo(0, 1000)
		h.wantState("a", pano.AwaitingAdmission)
		if !h.pool.Reserved("a") {
			t.Fatal("reservation dropped while building")
		}

		pending[0]()
		h.wantState("a", pano.Idle)
		if n := h.renderer.destroyCount("a"); n != 1 {
			t.Errorf("destroyed %d times, want 1", n)
		}
		if h.pool.Reserved("a") || h.pool.ActiveCount() != 0 {
			t.Error("discarded viewer kept pool state")
		}
	})

	t.Run("visible again", func(t *testing.T) {
		h := newHarness(t, 2)
		var pending []func()
		h.exec = func(f func()) { pending = append(pending, f) }

		h.mount("a", 0, true)
		h.tracker.ScrollTo(0, 1000)
		h.tracker.ScrollTo(0, 0)
		pending[0]()

		h.wantState("a", pano.Active)
		if len(pending) != 1 {
			t.Errorf("started %d constructions, want 1", len(pending))
		}
		h.checkBudget()
	})
}

func TestUnmountDuringConstruction(t *testing.T) {
	h := newHarness(t, 1)
	var pending []func()
	h.exec = func(f func()) { pending = append(pending, f) }

	a := h.mount("a", 0, true)
	a.Unmount()
	if !h.pool.Reserved("a") {
		t.Error("Unmount() dropped the reservation of an in-flight build")
	}

	// The slot stays taken until the build returns.
	b := h.mount("b", 0, true)
	if !b.Queued() {
		t.Fatal("second viewer admitted while a build was in flight")
	}
	if len(pending) != 1 {
		t.Fatalf("%d builds started, want 1", len(pending))
	}

	pending[0]()
	h.wantState("a", pano.Destroyed)
	if h.pool.Reserved("a") || h.pool.Contains("a") {
		t.Error("finished build left pool state for an unmounted viewer")
	}
	if n := h.renderer.liveCount(); n != 0 {
		t.Errorf("%d handles live", n)
	}

	// Capacity freed by the finished build wakes the waiting viewer.
	if len(pending) != 2 {
		t.Fatalf("%d builds started, want 2", len(pending))
	}
	pending[1]()
	h.wantState("b", pano.Active)
	h.checkBudget()
}

func TestEvictedWhileVisibleRequeues(t *testing.T) {
	h := newHarness(t, 1)
	a := h.mount("a", 0, true)

	// Another pool user takes the only slot.
	if err := h.pool.Register("other", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	h.wantState("a", pano.AwaitingAdmission)
	if !a.Queued() {
		t.Error("evicted viewer is not queued")
	}

	h.pool.ForceEvict("other")
	h.wantState("a", pano.Active)
	if n := h.renderer.createCount("a"); n != 2 {
		t.Errorf("created %d times, want 2", n)
	}
}

func TestRandomScrollingKeepsBudget(t *testing.T) {
	for _, max := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			h := newHarness(t, max)
			for i := range 8 {
				h.mount(fmt.Sprintf("v%d", i), i*250, true)
			}
			rng := rand.New(rand.NewSource(int64(max)))
			for range 300 {
				switch rng.Intn(3) {
				case 0:
					h.tracker.ScrollTo(0, rng.Intn(2200))
				case 1:
					h.clock.Advance(time.Duration(rng.Intn(4000)) * time.Millisecond)
				case 2:
					h.tracker.ScrollBy(0, rng.Intn(400)-200)
				}
				h.checkBudget()
			}

			for _, c := range h.ctrls {
				c.Unmount()
			}
			if h.pool.ActiveCount() != 0 || h.clock.PendingCount() != 0 || h.renderer.liveCount() != 0 {
				t.Errorf("after unmount: active=%d timers=%d handles=%d",
					h.pool.ActiveCount(), h.clock.PendingCount(), h.renderer.liveCount())
			}
		})
	}
}

func TestWithPanoramaAdapter(t *testing.T) {
	h := newHarness(t, 1)
	adapter := panorama.New(panorama.SyntheticLoader(nil), panorama.SoftwareBackend{},
		panorama.WithClock(h.clock))
	slot := panorama.NewSlot("a", 64, 32)

	vc := pano.DefaultViewerConfig()
	c, err := New(Params{
		ID:        "a",
		ImageURL:  "synthetic://7",
		Container: slot,
		Viewer:    vc,
		Timing:    pano.DefaultPoolConfig(),
		Pool:      h.pool,
		Renderer:  FromAdapter(adapter),
	}, WithClock(h.clock), WithExecutor(h.exec))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Mount(h.tracker, card(0)); err != nil {
		t.Fatal(err)
	}
	if c.State() != pano.Active || slot.Surface() == nil {
		t.Fatalf("State() = %v, mounted = %v", c.State(), slot.Surface() != nil)
	}

	h.tracker.ScrollTo(0, 1000)
	h.clock.Advance(500 * time.Millisecond)
	h.tracker.ScrollTo(0, 0)
	if adapter.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", adapter.Loads())
	}

	h.tracker.ScrollTo(0, 1000)
	h.clock.Advance(pano.DefaultDeferredTeardown)
	if c.State() != pano.Idle {
		t.Errorf("State() = %v, want Idle", c.State())
	}
	if slot.Surface() != nil || adapter.Live() != 0 {
		t.Error("viewer not torn down")
	}

	c.Unmount()
	if h.clock.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", h.clock.PendingCount())
	}
}
