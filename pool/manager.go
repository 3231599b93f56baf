package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/internal/clock"
)

// ErrInvalidRegistration is returned by Register for an empty id or a nil
// destroy handle.
var ErrInvalidRegistration = errors.New("pool: invalid registration")

// DestroyFunc releases the native resources of one registered viewer.
// The Manager calls it at most once per registration.
type DestroyFunc func() error

// Reason records why a registration left the pool.
type Reason uint8

const (
	// ReasonCapacity is an LRU eviction to make room for a new registration.
	ReasonCapacity Reason = iota
	// ReasonDeferred is a deferred eviction timer firing.
	ReasonDeferred
	// ReasonForced is an explicit ForceEvict or CleanupAll.
	ReasonForced
	// ReasonReplaced is a re-registration of a live id.
	ReasonReplaced
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonDeferred:
		return "deferred"
	case ReasonForced:
		return "forced"
	case ReasonReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Registration is a read-only view of one pool entry.
type Registration struct {
	ID              string
	LastActivatedAt time.Time
	PendingEviction bool
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Active        int
	Reserved      int
	MaxConcurrent int
	Pending       int

	Admissions        uint64
	Denials           uint64
	Registrations     uint64
	CapacityEvictions uint64
	DeferredEvictions uint64
	ForcedEvictions   uint64
	TeardownFailures  uint64
}

// registration is the pool-side bookkeeping for one live viewer.
type registration struct {
	id              string
	destroy         DestroyFunc
	lastActivatedAt time.Time
	node            *activation

	// deferred is the armed eviction timer; deferSeq identifies it so a
	// timer that fires after being replaced or cancelled is ignored.
	deferred *clock.Timer
	deferSeq uint64
}

type subscriber struct {
	id uint64
	fn func()
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock sets the clock used for activation timestamps and deferred
// eviction timers. Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// Manager tracks live rendering contexts and enforces the concurrency cap.
// All methods are safe for concurrent use.
type Manager struct {
	max   int
	clock clock.Clock

	mu       sync.Mutex
	entries  map[string]*registration
	order    activationList
	reserved map[string]struct{}
	timerSeq uint64
	subs     []subscriber
	subSeq   uint64

	admissions        atomic.Uint64
	denials           atomic.Uint64
	registrations     atomic.Uint64
	capacityEvictions atomic.Uint64
	deferredEvictions atomic.Uint64
	forcedEvictions   atomic.Uint64
	teardownFailures  atomic.Uint64
}

// New creates a Manager. A MaxConcurrent below 1 is treated as 1.
func New(cfg pano.PoolConfig, opts ...Option) *Manager {
	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	limit := cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return &Manager{
		max:      limit,
		clock:    o.clock,
		entries:  make(map[string]*registration),
		reserved: make(map[string]struct{}),
	}
}

// MaxConcurrent returns the concurrency cap.
func (m *Manager) MaxConcurrent() int {
	return m.max
}

// CanAdmit reports whether a slot is free, counting reservations.
func (m *Manager) CanAdmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedLocked() < m.max
}

// Admit reserves a slot for id. It returns true if the id already holds a
// reservation or registration. Admit never evicts.
func (m *Manager) Admit(id string) bool {
	return m.TryAdmit(id) == nil
}

// TryAdmit is Admit with a reason: it returns an error wrapping
// pano.ErrAdmissionDenied when every slot is taken.
func (m *Manager) TryAdmit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; ok {
		return nil
	}
	if _, ok := m.reserved[id]; ok {
		return nil
	}
	if m.usedLocked() >= m.max {
		m.denials.Add(1)
		return fmt.Errorf("%w: %s (%d live, %d reserved, max %d)",
			pano.ErrAdmissionDenied, id, m.order.Len(), len(m.reserved), m.max)
	}
	m.reserved[id] = struct{}{}
	m.admissions.Add(1)
	return nil
}

// Release drops the reservation for id, if any.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	_, ok := m.reserved[id]
	delete(m.reserved, id)
	m.mu.Unlock()

	if ok {
		m.notify()
	}
}

// Register records a live viewer. A reservation held by id is converted.
// If the pool already holds MaxConcurrent registrations, the least
// recently activated one is destroyed and removed before id is inserted.
// Registering an id that is already live replaces its handle and destroys
// the previous one.
func (m *Manager) Register(id string, destroy DestroyFunc) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRegistration)
	}
	if destroy == nil {
		return fmt.Errorf("%w: nil destroy handle for %q", ErrInvalidRegistration, id)
	}

	for {
		m.mu.Lock()
		if old, ok := m.entries[id]; ok {
			prev := old.destroy
			old.destroy = destroy
			m.stopDeferredLocked(old)
			m.activateLocked(old)
			m.mu.Unlock()

			m.teardown(id, prev, ReasonReplaced)
			return nil
		}

		if len(m.entries) < m.max {
			delete(m.reserved, id)
			reg := &registration{id: id, destroy: destroy, lastActivatedAt: m.clock.Now()}
			reg.node = m.order.PushFront(reg)
			m.entries[id] = reg
			active := len(m.entries)
			m.mu.Unlock()

			m.registrations.Add(1)
			pano.Logger().Debug("pool: registered", "id", id, "active", active, "max", m.max)
			return nil
		}

		victim := m.order.Oldest()
		m.removeLocked(victim)
		m.mu.Unlock()

		m.capacityEvictions.Add(1)
		m.teardown(victim.id, victim.destroy, ReasonCapacity)
	}
}

// Touch marks id as the most recently activated registration.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.entries[id]
	if !ok {
		return false
	}
	m.activateLocked(reg)
	return true
}

// ScheduleDeferredEviction arms the eviction timer for id, replacing any
// timer already pending for it. A non-positive delay evicts immediately.
// It returns false if id is not registered.
func (m *Manager) ScheduleDeferredEviction(id string, delay time.Duration) bool {
	m.mu.Lock()
	reg, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.stopDeferredLocked(reg)

	if delay <= 0 {
		m.removeLocked(reg)
		m.mu.Unlock()
		m.deferredEvictions.Add(1)
		m.teardown(id, reg.destroy, ReasonDeferred)
		m.notify()
		return true
	}

	m.timerSeq++
	seq := m.timerSeq
	reg.deferSeq = seq
	reg.deferred = m.clock.AfterFunc(delay, func() { m.fireDeferred(id, seq) })
	m.mu.Unlock()

	pano.Logger().Debug("pool: deferred eviction armed", "id", id, "delay", delay)
	return true
}

// CancelDeferredEviction disarms the pending eviction timer for id. It
// reports whether a timer was pending.
func (m *Manager) CancelDeferredEviction(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.entries[id]
	if !ok || reg.deferSeq == 0 {
		return false
	}
	m.stopDeferredLocked(reg)
	return true
}

// ForceEvict destroys and removes the registration for id immediately and
// drops any reservation it holds. Evicting an absent id is a no-op. It
// reports whether a registration was removed.
func (m *Manager) ForceEvict(id string) bool {
	m.mu.Lock()
	_, hadReservation := m.reserved[id]
	delete(m.reserved, id)
	reg, ok := m.entries[id]
	if ok {
		m.removeLocked(reg)
	}
	m.mu.Unlock()

	if ok {
		m.forcedEvictions.Add(1)
		m.teardown(id, reg.destroy, ReasonForced)
	}
	if ok || hadReservation {
		m.notify()
	}
	return ok
}

// CleanupAll force-evicts every registration, least recently activated
// first. Reservations held by in-flight constructions are left to their
// owners.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	var victims []*registration
	m.order.Each(func(reg *registration) {
		victims = append(victims, reg)
	})
	for _, reg := range victims {
		m.removeLocked(reg)
	}
	m.mu.Unlock()

	for _, reg := range victims {
		m.forcedEvictions.Add(1)
		m.teardown(reg.id, reg.destroy, ReasonForced)
	}
	if len(victims) > 0 {
		pano.Logger().Info("pool: cleaned up", "evicted", len(victims))
		m.notify()
	}
}

// ActiveCount returns the number of live registrations.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Contains reports whether id is registered.
func (m *Manager) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Reserved reports whether id holds a reservation.
func (m *Manager) Reserved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reserved[id]
	return ok
}

// PendingEvictions returns the number of armed deferred eviction timers.
func (m *Manager) PendingEvictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, reg := range m.entries {
		if reg.deferSeq != 0 {
			n++
		}
	}
	return n
}

// Registrations returns the live registrations, least recently activated
// first.
func (m *Manager) Registrations() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Registration, 0, m.order.Len())
	m.order.Each(func(reg *registration) {
		out = append(out, Registration{
			ID:              reg.id,
			LastActivatedAt: reg.lastActivatedAt,
			PendingEviction: reg.deferSeq != 0,
		})
	})
	return out
}

// Stats returns a snapshot of the pool counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	active := len(m.entries)
	reserved := len(m.reserved)
	pending := 0
	for _, reg := range m.entries {
		if reg.deferSeq != 0 {
			pending++
		}
	}
	m.mu.Unlock()

	return Stats{
		Active:            active,
		Reserved:          reserved,
		MaxConcurrent:     m.max,
		Pending:           pending,
		Admissions:        m.admissions.Load(),
		Denials:           m.denials.Load(),
		Registrations:     m.registrations.Load(),
		CapacityEvictions: m.capacityEvictions.Load(),
		DeferredEvictions: m.deferredEvictions.Load(),
		ForcedEvictions:   m.forcedEvictions.Load(),
		TeardownFailures:  m.teardownFailures.Load(),
	}
}

// Subscribe registers fn to be called whenever a slot is freed by a
// release, deferred eviction or forced eviction. Callbacks run outside the
// manager's lock in subscription order. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	m.subSeq++
	id := m.subSeq
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) fireDeferred(id string, seq uint64) {
	m.mu.Lock()
	reg, ok := m.entries[id]
	if !ok || reg.deferSeq != seq {
		m.mu.Unlock()
		return
	}
	reg.deferred = nil
	m.removeLocked(reg)
	m.mu.Unlock()

	m.deferredEvictions.Add(1)
	m.teardown(id, reg.destroy, ReasonDeferred)
	m.notify()
}

// teardown invokes a destroy handle, containing errors and panics.
func (m *Manager) teardown(id string, destroy DestroyFunc, reason Reason) {
	log := pano.Logger()
	defer func() {
		if r := recover(); r != nil {
			m.teardownFailures.Add(1)
			log.Warn("pool: destroy handle panicked", "id", id, "reason", reason.String(), "panic", r)
		}
	}()

	if err := destroy(); err != nil {
		m.teardownFailures.Add(1)
		log.Warn("pool: destroy handle failed", "id", id, "reason", reason.String(),
			"err", fmt.Errorf("%w: %w", pano.ErrTeardown, err))
		return
	}
	log.Info("pool: evicted", "id", id, "reason", reason.String())
}

func (m *Manager) notify() {
	m.mu.Lock()
	fns := make([]func(), len(m.subs))
	for i, s := range m.subs {
		fns[i] = s.fn
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) usedLocked() int {
	return m.order.Len() + len(m.reserved)
}

func (m *Manager) activateLocked(reg *registration) {
	reg.lastActivatedAt = m.clock.Now()
	m.order.MoveToFront(reg.node)
}

func (m *Manager) removeLocked(reg *registration) {
	delete(m.entries, reg.id)
	m.order.Remove(reg.node)
	reg.node = nil
	m.stopDeferredLocked(reg)
}

func (m *Manager) stopDeferredLocked(reg *registration) {
	if reg.deferred != nil {
		reg.deferred.Stop()
	}
	reg.deferred = nil
	reg.deferSeq = 0
}
