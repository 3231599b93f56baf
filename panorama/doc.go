// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package panorama builds live 360° viewers from equirectangular images.
//
// An Adapter turns an image URL into a Viewer mounted in a Container:
//
//	Loader (fetch + decode) -> texture -> geometry (camera rays)
//	    -> Surface (gg.Context or GPU canvas) -> Container
//
// A Viewer runs a render loop that applies auto-rotation and drag/zoom
// input, reprojecting the sphere into the surface each frame. Destroy
// releases the loop, the input listeners, the texture, the geometry and
// the surface in that order, then clears the container. Destroy is
// idempotent and is the handle registered with the pool.
//
// # Backends
//
// SoftwareBackend renders into a gg.Context and always works.
// GPUBackend uploads frames through ggcanvas to a GPU texture using a
// gpucontext.DeviceProvider supplied by the host window. When no provider
// exists it reports pano.ErrBackendUnavailable, which callers treat as a
// permanent reason to show a static placeholder instead.
//
// # Thread Safety
//
// Adapter is safe for concurrent use. Viewer methods may be called from
// any goroutine; the render loop runs on the clock's timer goroutine.
package panorama
