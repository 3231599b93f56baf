// Package pool bounds the number of live panorama rendering contexts.
//
// A Manager is created once by the composition root and shared by every
// viewer. It admits viewers up to MaxConcurrent, evicts the least recently
// activated registration when a new one arrives at capacity, and owns one
// cancellable deferred-eviction timer per id so that a viewer that scrolls
// out of view keeps its slot for a grace period.
//
// # Admission
//
// Two admission styles are supported. CanAdmit followed by Register is the
// simple form: Register evicts if another viewer won the race. Admit
// followed by Register reserves the slot first, so a constructing viewer
// can never displace a live one:
//
//	if err := m.TryAdmit(id); err != nil {
//	    return err // wraps pano.ErrAdmissionDenied; retry later
//	}
//	v, err := build()
//	if err != nil {
//	    m.Release(id)
//	    return err
//	}
//	m.Register(id, v.Destroy)
//
// # Teardown
//
// Destroy handles run outside the manager's lock, so a handle may call
// back into the Manager. Errors and panics from handles are logged and
// counted; the registration is removed regardless.
package pool
