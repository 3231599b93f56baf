package pano

import "errors"

// Error taxonomy shared by the sub-packages. None of these reach the end
// user: a viewer that cannot be built keeps showing its placeholder.
var (
	// ErrAdmissionDenied indicates the pool is at capacity. It is a flow
	// control outcome handled by retry, not a failure.
	ErrAdmissionDenied = errors.New("pano: admission denied")

	// ErrConstruction indicates a surface could not be built (image fetch,
	// decode, or context creation failed). The viewer retries later.
	ErrConstruction = errors.New("pano: viewer construction failed")

	// ErrTeardown indicates native resource release failed. The pool logs
	// it and drops its bookkeeping regardless.
	ErrTeardown = errors.New("pano: viewer teardown failed")

	// ErrBackendUnavailable indicates the environment has no rendering
	// backend. It is permanent: callers fall back to a static image.
	ErrBackendUnavailable = errors.New("pano: rendering backend unavailable")
)
