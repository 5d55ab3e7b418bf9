package core

import (
	"log/slog"
	"sync/atomic"
)

// logger is the package-level logger, stored as an atomic pointer so reads
// and writes are safe from any goroutine. A nil value means no custom
// logger has been set; Logger() falls back to a cached default derived
// from slog.Default().
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches the default-derived logger (slog.Default() with the
// pgenv component attribute) so it is not re-created on every Logger()
// call. If slog.SetDefault() changes after the first call, the cache keeps
// the old handler; calling SetLogger(nil) clears it so the next Logger()
// call re-derives.
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the current package-level logger, falling back to a
// cached logger derived from slog.Default() with the pgenv component
// attribute. Safe to call from multiple goroutines.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "pgenv")
	// CAS so a concurrently cached value is not overwritten; if another
	// goroutine won, use theirs.
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger replaces the package-level logger. If l is nil, the logger
// resets to the default derived from slog.Default() on the next Logger()
// call. Safe to call concurrently with other operations.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}
