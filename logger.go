package pano

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so SetLogger can
// race with pool timers and render loops that log from their own goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pano and all its sub-packages.
// By default pano produces no log output. Pass nil to restore silence.
//
// Log levels used by pano:
//   - [slog.LevelDebug]: state transitions, timer arming, admission retries
//   - [slog.LevelInfo]: viewer construction and eviction
//   - [slog.LevelWarn]: teardown failures, construction failures, degraded modes
//
// Example:
//
//	pano.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by pano.
// Sub-packages (pool/, lifecycle/, panorama/) call this to share one
// logger configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
