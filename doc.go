// Package pano manages pooled 360° panorama viewers.
//
// # Overview
//
// Browsers and GPU drivers cap the number of rendering contexts that may be
// alive at once. A page that shows a grid of panorama cards therefore cannot
// give every card its own viewer. pano keeps a bounded pool of live viewers
// and drives each card through a small state machine:
//
//	Idle -> AwaitingAdmission -> Active -> PendingTeardown -> Idle
//	                 (any) -> Destroyed
//
// Cards become eligible when they scroll near the viewport, wait for a pool
// slot, and release their slot a few seconds after leaving view so that fast
// scrolling does not churn construction and teardown.
//
// # Packages
//
//   - pool: admission control, LRU-by-activation eviction, deferred eviction timers
//   - viewport: intersection tracking with a pre-load margin
//   - lifecycle: the per-card state machine
//   - panorama: image loading, equirectangular projection, surfaces, render loop
//   - grid: composition root wiring the above for a scrolling grid
//   - monitor: active count, state histogram and frame rate sampling
//
// # Quick Start
//
//	cfg := pano.DefaultConfig()
//	g, err := grid.New(cfg, grid.WithLoader(panorama.NewHTTPLoader(nil)))
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
//
//	g.Add(grid.Card{ImageURL: "https://example.com/lobby.jpg", Bounds: r})
//	g.ScrollTo(0, 800)
//
// # Logging
//
// pano is silent by default. Call [SetLogger] to route diagnostics to a
// slog.Logger.
package pano
