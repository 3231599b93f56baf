// Package monitor samples pool occupancy, card states and frame rate, and
// grades them against the thresholds a grid should stay under.
package monitor

import (
	"runtime"
	"sync"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
	"github.com/gogpu/pano/pool"
)

// Thresholds.
const (
	// MaxHealthyViewers is the live viewer count above which the page is
	// considered overloaded.
	MaxHealthyViewers = 6

	// FPSWarn and FPSCritical grade per-viewer frame rate.
	FPSWarn     = 50
	FPSCritical = 30
)

// Level grades a measurement.
type Level uint8

const (
	LevelOK Level = iota
	LevelWarn
	LevelCritical
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CardStatus is the observable state of one card.
type CardStatus struct {
	ID       string
	State    pano.State
	Queued   bool
	Degraded bool
	Failures int
}

// PoolSource reports pool counters. *pool.Manager implements it.
type PoolSource interface {
	Stats() pool.Stats
}

// FrameSource reports presented frames and render loop iterations.
// *panorama.Adapter implements it.
type FrameSource interface {
	Frames() uint64
	Ticks() uint64
}

// CardSource lists card states.
type CardSource interface {
	Cards() []CardStatus
}

// Snapshot is one sample.
type Snapshot struct {
	Time   time.Time
	Uptime time.Duration

	Pool  pool.Stats
	Cards []CardStatus

	// States counts cards per lifecycle state.
	States map[pano.State]int

	// Frames and Ticks are running totals. FPS is render loop iterations
	// per second per live viewer since the previous sample; a viewer with
	// nothing to redraw still ticks, so a still grid is not graded down.
	Frames uint64
	Ticks  uint64
	FPS    float64

	HeapBytes uint64
}

// ActiveLevel grades the live viewer count.
func (s Snapshot) ActiveLevel() Level {
	if s.Pool.Active > MaxHealthyViewers {
		return LevelCritical
	}
	return LevelOK
}

// FPSLevel grades the frame rate. An idle grid is OK.
func (s Snapshot) FPSLevel() Level {
	switch {
	case s.Pool.Active == 0:
		return LevelOK
	case s.FPS < FPSCritical:
		return LevelCritical
	case s.FPS < FPSWarn:
		return LevelWarn
	default:
		return LevelOK
	}
}

// Level returns the worst of all grades.
func (s Snapshot) Level() Level {
	return max(s.ActiveLevel(), s.FPSLevel())
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock sets the clock used for timestamps and rates.
func WithClock(c clock.Clock) Option {
	return func(col *Collector) { col.clock = c }
}

// WithFrames sets the frame counter.
func WithFrames(f FrameSource) Option {
	return func(col *Collector) { col.frames = f }
}

// WithCards sets the card state source.
func WithCards(c CardSource) Option {
	return func(col *Collector) { col.cards = c }
}

// WithMemStats enables heap sampling through runtime.ReadMemStats.
func WithMemStats(enabled bool) Option {
	return func(col *Collector) { col.memStats = enabled }
}

// Collector produces snapshots. It is safe for concurrent use.
type Collector struct {
	pool     PoolSource
	frames   FrameSource
	cards    CardSource
	clock    clock.Clock
	memStats bool
	start    time.Time

	mu        sync.Mutex
	lastTime  time.Time
	lastTicks uint64
	lastFPS   float64
}

// New creates a Collector over p.
func New(p PoolSource, opts ...Option) *Collector {
	c := &Collector{pool: p, clock: clock.Real()}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.clock.Now()
	c.lastTime = c.start
	if c.frames != nil {
		c.lastTicks = c.frames.Ticks()
	}
	return c
}

// Sample takes a snapshot. FPS is measured over the time since the
// previous Sample; two samples at the same instant repeat the last rate.
func (c *Collector) Sample() Snapshot {
	now := c.clock.Now()
	s := Snapshot{
		Time:   now,
		Uptime: now.Sub(c.start),
		Pool:   c.pool.Stats(),
		States: make(map[pano.State]int, len(pano.States)),
	}
	if c.cards != nil {
		s.Cards = c.cards.Cards()
		for _, card := range s.Cards {
			s.States[card.State]++
		}
	}
	if c.frames != nil {
		s.Frames = c.frames.Frames()
		s.Ticks = c.frames.Ticks()
	}
	if c.memStats {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		s.HeapBytes = ms.HeapAlloc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := now.Sub(c.lastTime); elapsed > 0 {
		c.lastFPS = 0
		if s.Pool.Active > 0 {
			delta := float64(s.Ticks - c.lastTicks)
			c.lastFPS = delta / elapsed.Seconds() / float64(s.Pool.Active)
		}
		c.lastTime = now
		c.lastTicks = s.Ticks
	}
	s.FPS = c.lastFPS
	return s
}
