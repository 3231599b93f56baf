// Package lifecycle drives one panorama viewer through its states.
//
// A Controller consumes visibility events from a viewport.Observer and
// admission results from the pool to decide when to build, keep, defer
// or destroy its viewer:
//
//	Idle -> AwaitingAdmission -> Active -> PendingTeardown -> Idle
//	any  -> Destroyed (Unmount, terminal)
//
// While waiting for admission the controller polls the pool every
// AdmissionRetry and also wakes as soon as the pool reports freed
// capacity. Leaving the viewport arms a deferred eviction instead of
// tearing down, so quick scrolling back keeps the same viewer.
//
// Controllers never hold their own lock while calling the pool, the
// renderer, a viewer handle or the observer, because any of those may
// call back into the controller.
package lifecycle
