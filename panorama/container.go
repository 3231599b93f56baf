// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import "sync"

// InputKind identifies a pointer interaction.
type InputKind uint8

const (
	// InputDrag rotates the camera by DX, DY pixels.
	InputDrag InputKind = iota
	// InputZoom changes the field of view by Delta degrees.
	InputZoom
)

// Input is a pointer event delivered by a Container.
type Input struct {
	Kind   InputKind
	DX, DY float64
	Delta  float64
}

// Container is the mount point a viewer renders into. The caller owns its
// lifetime; viewers only mount a surface, listen for input and clear it.
type Container interface {
	// ID returns the stable identifier of the mount point.
	ID() string

	// Size returns the drawable size in pixels.
	Size() (width, height int)

	// Mount attaches a surface as the container's content.
	Mount(Surface)

	// Clear removes all content.
	Clear()

	// Listen registers an input handler and returns its remover.
	Listen(fn func(Input)) (remove func())
}

// Slot is an in-memory Container.
type Slot struct {
	id            string
	width, height int

	mu        sync.Mutex
	surface   Surface
	listeners map[uint64]func(Input)
	seq       uint64
	clears    int
}

// NewSlot creates a Slot of the given size.
func NewSlot(id string, width, height int) *Slot {
	return &Slot{
		id:        id,
		width:     width,
		height:    height,
		listeners: make(map[uint64]func(Input)),
	}
}

// ID returns the slot identifier.
func (s *Slot) ID() string { return s.id }

// Size returns the slot size.
func (s *Slot) Size() (width, height int) { return s.width, s.height }

// Mount sets the slot's surface.
func (s *Slot) Mount(surface Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
}

// Clear drops the mounted surface.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = nil
	s.clears++
}

// Listen registers fn for input dispatched to the slot.
func (s *Slot) Listen(fn func(Input)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispatch delivers in to every listener.
func (s *Slot) Dispatch(in Input) {
	s.mu.Lock()
	fns := make([]func(Input), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(in)
	}
}

// Surface returns the mounted surface, or nil.
func (s *Slot) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Listeners returns the number of registered input handlers.
func (s *Slot) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Clears returns how many times Clear was called.
func (s *Slot) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

var _ Container = (*Slot)(nil)
